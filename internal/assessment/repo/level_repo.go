package repo

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

// Key layout:
//
//	seq/assessment          -> last assigned id (8 bytes big endian)
//	assessment/<%020d id>   -> JSON encoded entity.Assessment
const (
	levelSeqKey = "seq/assessment"
	levelPrefix = "assessment/"
)

// LevelRepo stores assessments in an embedded LevelDB.
type LevelRepo struct {
	db *leveldb.DB
	// mu serialises read-modify-write sequences (id allocation, existence checks).
	mu sync.Mutex
}

func NewLevelRepo(db *leveldb.DB) *LevelRepo { return &LevelRepo{db: db} }

func levelKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", levelPrefix, id))
}

// EnsureTable is a no-op; LevelDB needs no schema.
func (r *LevelRepo) EnsureTable(ctx context.Context) error { return nil }

func (r *LevelRepo) Create(ctx context.Context, a *entity.Assessment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last int64
	raw, err := r.db.Get([]byte(levelSeqKey), nil)
	switch {
	case err == nil:
		last = int64(binary.BigEndian.Uint64(raw))
	case errors.Is(err, leveldb.ErrNotFound):
	default:
		return 0, apperr.Unavailable("read assessment sequence", err)
	}

	row := *a
	row.ID = last + 1
	body, err := json.Marshal(&row)
	if err != nil {
		return 0, fmt.Errorf("encode assessment: %w", err)
	}
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, uint64(row.ID))

	batch := new(leveldb.Batch)
	batch.Put([]byte(levelSeqKey), seq)
	batch.Put(levelKey(row.ID), body)
	if err := r.db.Write(batch, nil); err != nil {
		return 0, apperr.Unavailable("insert assessment", err)
	}
	a.ID = row.ID
	return row.ID, nil
}

func (r *LevelRepo) Update(ctx context.Context, a *entity.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := levelKey(a.ID)
	ok, err := r.db.Has(key, nil)
	if err != nil {
		return apperr.Unavailable("update assessment", err)
	}
	if !ok {
		return apperr.ErrNotFound
	}
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	if err := r.db.Put(key, body, nil); err != nil {
		return apperr.Unavailable("update assessment", err)
	}
	return nil
}

func (r *LevelRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := levelKey(id)
	ok, err := r.db.Has(key, nil)
	if err != nil {
		return apperr.Unavailable("delete assessment", err)
	}
	if !ok {
		return apperr.ErrNotFound
	}
	if err := r.db.Delete(key, nil); err != nil {
		return apperr.Unavailable("delete assessment", err)
	}
	return nil
}

func (r *LevelRepo) GetByID(ctx context.Context, id int64) (*entity.Assessment, error) {
	raw, err := r.db.Get(levelKey(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Unavailable("get assessment", err)
	}
	return decode(raw)
}

func (r *LevelRepo) List(ctx context.Context) ([]*entity.Assessment, error) {
	var out []*entity.Assessment
	err := r.scan(func(a *entity.Assessment) bool {
		out = append(out, a)
		return true
	})
	return out, err
}

func (r *LevelRepo) FindByNameAndDate(ctx context.Context, name string, date entity.Date) (*entity.Assessment, error) {
	var found *entity.Assessment
	err := r.scan(func(a *entity.Assessment) bool {
		if a.PatientName == name && a.CreatedDate.Equal(date.Time) {
			found = a
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apperr.ErrNotFound
	}
	return found, nil
}

// scan walks records in id order until fn returns false.
func (r *LevelRepo) scan(fn func(*entity.Assessment) bool) error {
	iter := r.db.NewIterator(util.BytesPrefix([]byte(levelPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		a, err := decode(iter.Value())
		if err != nil {
			return err
		}
		if !fn(a) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return apperr.Unavailable("scan assessments", err)
	}
	return nil
}

func decode(raw []byte) (*entity.Assessment, error) {
	var a entity.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	return &a, nil
}
