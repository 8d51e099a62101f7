package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"bearing-fault-sim/internal/models"
)

var bucketRides = []byte("rides") // key=ride_id (big-endian), val=json

// ErrNotFound поездка отсутствует в архиве
var ErrNotFound = errors.New("ride not found")

// Store архив сгенерированных поездок на bbolt
type Store struct{ db *bolt.DB }

// Open открывает (или создает) файл архива
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketRides)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// PutRide сохраняет поездку; запись с тем же ride_id перезаписывается
func (s *Store) PutRide(r models.RideSample) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal ride %d: %w", r.RideID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRides).Put(itob(r.RideID), b)
	})
}

// PutRides сохраняет набор поездок одной транзакцией
func (s *Store) PutRides(rides []models.RideSample) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketRides)
		for _, r := range rides {
			b, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal ride %d: %w", r.RideID, err)
			}
			if err := bk.Put(itob(r.RideID), b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetRide(id int64) (models.RideSample, error) {
	var r models.RideSample
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRides).Get(itob(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	return r, err
}

// List возвращает до limit последних поездок, новые первыми.
// limit <= 0 означает все.
func (s *Store) List(limit int) ([]models.RideSample, error) {
	var out []models.RideSample
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRides).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var r models.RideSample
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode ride %d: %w", btoi(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Iterate обходит архив по возрастанию ride_id; ошибка fn прерывает обход
func (s *Store) Iterate(fn func(models.RideSample) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRides).ForEach(func(k, v []byte) error {
			var r models.RideSample
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode ride %d: %w", btoi(k), err)
			}
			return fn(r)
		})
	})
}

// MaxRideID наибольший ride_id в архиве, 0 для пустого архива
func (s *Store) MaxRideID() (int64, error) {
	var id int64
	err := s.db.View(func(tx *bolt.Tx) error {
		if k, _ := tx.Bucket(bucketRides).Cursor().Last(); k != nil {
			id = btoi(k)
		}
		return nil
	})
	return id, err
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRides).Stats().KeyN
		return nil
	})
	return n, err
}

// utils
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 { return int64(binary.BigEndian.Uint64(b)) }
