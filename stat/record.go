package stat

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-idp-services/directory"
)

const (
	ObjectClassStatEntry = "jansStatEntry"

	AttrID      = "jansId"
	AttrData    = "jansData"
	AttrUserHLL = "dat"
)

// Record is the per node, per month statistics entry.
type Record struct {
	DN                     string
	NodeID                 string
	Month                  string
	UserHLLData            []byte
	TokenCountPerGrantType map[string]map[string]int64
	LastUpdatedAt          time.Time
}

type recordData struct {
	Month                  string                      `json:"month"`
	TokenCountPerGrantType map[string]map[string]int64 `json:"tokenCountPerGrantType"`
	LastUpdatedAt          int64                       `json:"lastUpdatedAt"`
}

func (r Record) Clone() Record {
	cloned := r
	cloned.UserHLLData = append([]byte(nil), r.UserHLLData...)
	cloned.TokenCountPerGrantType = cloneCounts(r.TokenCountPerGrantType)
	return cloned
}

// ToEntry encodes the record. Estimator bytes are base64 encoded so they
// survive text-only attribute storage unchanged.
func (r Record) ToEntry() (directory.Entry, error) {
	data := recordData{
		Month:                  r.Month,
		TokenCountPerGrantType: cloneCounts(r.TokenCountPerGrantType),
	}
	if !r.LastUpdatedAt.IsZero() {
		data.LastUpdatedAt = r.LastUpdatedAt.UTC().UnixMilli()
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return directory.Entry{}, fmt.Errorf("stat: encode record data: %w", err)
	}
	entry := directory.NewEntry(r.DN, ObjectClassStatEntry)
	entry.Set(AttrID, r.NodeID)
	entry.Set(AttrData, string(payload))
	entry.Set(AttrUserHLL, base64.StdEncoding.EncodeToString(r.UserHLLData))
	return entry, nil
}

func RecordFromEntry(entry directory.Entry) (Record, error) {
	record := Record{
		DN:                     entry.DN,
		NodeID:                 entry.Get(AttrID),
		TokenCountPerGrantType: map[string]map[string]int64{},
	}
	if raw := entry.Get(AttrData); raw != "" {
		var data recordData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return Record{}, fmt.Errorf("stat: decode record data %s: %w", entry.DN, err)
		}
		record.Month = data.Month
		if data.TokenCountPerGrantType != nil {
			record.TokenCountPerGrantType = data.TokenCountPerGrantType
		}
		if data.LastUpdatedAt > 0 {
			record.LastUpdatedAt = time.UnixMilli(data.LastUpdatedAt).UTC()
		}
	}
	if raw := entry.Get(AttrUserHLL); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Record{}, fmt.Errorf("stat: decode estimator data %s: %w", entry.DN, err)
		}
		record.UserHLLData = decoded
	}
	return record, nil
}
