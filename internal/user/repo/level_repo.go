package repo

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// Key layout:
//
//	seq/user            -> last assigned id (8 bytes big endian)
//	user/<%020d id>     -> JSON encoded entity.User
//	username/<name>     -> decimal id
const (
	levelSeqKey      = "seq/user"
	levelUserPrefix  = "user/"
	levelIndexPrefix = "username/"
)

// LevelRepo stores identities in an embedded LevelDB.
type LevelRepo struct {
	db *leveldb.DB
	mu sync.Mutex
	// now is swapped in tests.
	now func() time.Time
}

func NewLevelRepo(db *leveldb.DB) *LevelRepo {
	return &LevelRepo{db: db, now: time.Now}
}

func userKey(id int64) []byte { return []byte(fmt.Sprintf("%s%020d", levelUserPrefix, id)) }

func indexKey(username string) []byte { return []byte(levelIndexPrefix + username) }

func (r *LevelRepo) EnsureTable(ctx context.Context) error { return nil }

func (r *LevelRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken, err := r.db.Has(indexKey(u.Username), nil)
	if err != nil {
		return 0, apperr.Unavailable("insert user", err)
	}
	if taken {
		return 0, apperr.ErrAlreadyExists
	}

	var last int64
	raw, err := r.db.Get([]byte(levelSeqKey), nil)
	switch {
	case err == nil:
		last = int64(binary.BigEndian.Uint64(raw))
	case errors.Is(err, leveldb.ErrNotFound):
	default:
		return 0, apperr.Unavailable("read user sequence", err)
	}

	row := *u
	row.ID = last + 1
	row.CreatedAt = r.now().UTC()
	row.UpdatedAt = row.CreatedAt
	body, err := json.Marshal(storedUser(row))
	if err != nil {
		return 0, fmt.Errorf("encode user: %w", err)
	}
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, uint64(row.ID))

	batch := new(leveldb.Batch)
	batch.Put([]byte(levelSeqKey), seq)
	batch.Put(userKey(row.ID), body)
	batch.Put(indexKey(row.Username), []byte(strconv.FormatInt(row.ID, 10)))
	if err := r.db.Write(batch, nil); err != nil {
		return 0, apperr.Unavailable("insert user", err)
	}
	u.ID, u.CreatedAt, u.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
	return row.ID, nil
}

func (r *LevelRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	raw, err := r.db.Get(userKey(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Unavailable("get user", err)
	}
	return decodeUser(raw)
}

func (r *LevelRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	raw, err := r.db.Get(indexKey(username), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Unavailable("get user", err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode username index: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *LevelRepo) List(ctx context.Context) ([]*entity.User, error) {
	iter := r.db.NewIterator(util.BytesPrefix([]byte(levelUserPrefix)), nil)
	defer iter.Release()
	var out []*entity.User
	for iter.Next() {
		u, err := decodeUser(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := iter.Error(); err != nil {
		return nil, apperr.Unavailable("list users", err)
	}
	return out, nil
}

func (r *LevelRepo) Update(ctx context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	if u.Username != current.Username {
		taken, err := r.db.Has(indexKey(u.Username), nil)
		if err != nil {
			return apperr.Unavailable("update user", err)
		}
		if taken {
			return apperr.ErrAlreadyExists
		}
		batch.Delete(indexKey(current.Username))
		batch.Put(indexKey(u.Username), []byte(strconv.FormatInt(u.ID, 10)))
	}
	row := *current
	row.Username, row.Role = u.Username, u.Role
	row.PasswordHash, row.PasswordAlgo = u.PasswordHash, u.PasswordAlgo
	row.UpdatedAt = r.now().UTC()
	body, err := json.Marshal(storedUser(row))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	batch.Put(userKey(u.ID), body)
	if err := r.db.Write(batch, nil); err != nil {
		return apperr.Unavailable("update user", err)
	}
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *LevelRepo) UpdatePassword(ctx context.Context, id int64, hash, algo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.PasswordHash, u.PasswordAlgo, u.UpdatedAt = hash, algo, r.now().UTC()
	body, err := json.Marshal(storedUser(*u))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := r.db.Put(userKey(id), body, nil); err != nil {
		return apperr.Unavailable("update password", err)
	}
	return nil
}

func (r *LevelRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete(userKey(id))
	batch.Delete(indexKey(u.Username))
	if err := r.db.Write(batch, nil); err != nil {
		return apperr.Unavailable("delete user", err)
	}
	return nil
}

func (r *LevelRepo) CountByRole(ctx context.Context, role entity.Role) (int, error) {
	all, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, u := range all {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// levelUser is the stored form; entity.User hides the password from JSON.
type levelUser struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"password_hash"`
	PasswordAlgo string      `json:"password_algo"`
	Role         entity.Role `json:"role"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func storedUser(u entity.User) levelUser {
	return levelUser(u)
}

func decodeUser(raw []byte) (*entity.User, error) {
	var s levelUser
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	u := entity.User(s)
	return &u, nil
}
