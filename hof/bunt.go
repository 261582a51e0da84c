package hof

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

const buntRankIndex = "rank"

// BuntStore keeps entries as JSON under "entry:<id>:data" keys.
type BuntStore struct {
	db *buntdb.DB
}

// buntRecord is the stored form of an entry. RecordedKey is RecordedAt in a fixed-width
// UTC format, so the index orders it chronologically.
type buntRecord struct {
	Entry
	RecordedKey string `json:"recordedKey"`
}

// OpenBunt opens (or creates) a store at path. Use ":memory:" for a store that is not
// persisted.
func OpenBunt(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	var cfg buntdb.Config
	if err := db.ReadConfig(&cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg.SyncPolicy = buntdb.Always
	if err := db.SetConfig(cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	err = db.CreateIndex(buntRankIndex, "entry:*:data", buntdb.Desc(buntdb.IndexJSON("rightPerHour")), buntdb.IndexJSON("recordedKey"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &BuntStore{db: db}, nil
}

func entryKey(e Entry) string {
	return fmt.Sprintf("entry:%s:data", e.ID)
}

func (s *BuntStore) Add(ctx context.Context, e Entry) error {
	data, err := json.Marshal(buntRecord{
		Entry:       e,
		RecordedKey: e.RecordedAt.UTC().Format(timeFormat),
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, replaced, err := tx.Set(entryKey(e), string(data), nil)
		if err != nil {
			return err
		}
		if replaced {
			zap.S().Warnf("hof: replaced entry %s", e.ID)
		}
		return nil
	})
}

func (s *BuntStore) Top(ctx context.Context, stationName string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	var res []Entry
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(buntRankIndex, func(key, value string) bool {
			if !strings.HasPrefix(key, "entry:") || !strings.HasSuffix(key, ":data") {
				return true
			}
			var rec buntRecord
			if err := json.Unmarshal([]byte(value), &rec); err != nil {
				zap.S().Errorw("unmarshalling failed",
					"key", key,
					"value", value)
				return true
			}
			if stationName != "" && rec.Station != stationName {
				return true
			}
			res = append(res, rec.Entry)
			return len(res) < n
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}
