package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	purchaseIntentKeyPrefix = "purchase_intent_"

	intentStatusPending = "pending"
	intentStatusDone    = "done"
	intentStatusFailed  = "failed"
	// intentStatusUnresolved marks attempts where the purchase call was
	// issued but the verifying balance read could not complete. These need
	// operator attention: stars may or may not have been spent.
	intentStatusUnresolved = "unresolved"

	journalSegmentThreshold = 1000
	journalMaxSegments      = 100
)

// purchaseIntent brackets one purchase call in the write-ahead journal.
type purchaseIntent struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Link      string    `json:"link"`
	Price     int64     `json:"price"`
	Recipient string    `json:"recipient"`
	Time      time.Time `json:"time"`
	Error     string    `json:"error,omitempty"`
}

// purchaseJournal persists intent records so a crash or cancellation between
// the purchase call and its verification is never silently lost.
type purchaseJournal struct {
	wal *gowal.Wal
}

func openJournal(dir string) (*purchaseJournal, error) {
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: journalSegmentThreshold,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open purchase journal")
	}
	return &purchaseJournal{wal: wal}, nil
}

// Prepare writes a pending record before the purchase call goes out.
func (j *purchaseJournal) Prepare(link, recipient string, price int64) (*purchaseIntent, error) {
	intent := &purchaseIntent{
		ID:        uuid.New().String(),
		Status:    intentStatusPending,
		Link:      link,
		Price:     price,
		Recipient: recipient,
		Time:      time.Now(),
	}
	if err := j.persist(intent); err != nil {
		return nil, err
	}
	return intent, nil
}

func (j *purchaseJournal) MarkDone(intent *purchaseIntent) error {
	if intent == nil {
		return nil
	}
	intent.Status = intentStatusDone
	intent.Error = ""
	return j.persist(intent)
}

func (j *purchaseJournal) MarkFailed(intent *purchaseIntent, cause error) error {
	if intent == nil {
		return nil
	}
	intent.Status = intentStatusFailed
	if cause != nil {
		intent.Error = cause.Error()
	} else {
		intent.Error = ""
	}
	return j.persist(intent)
}

func (j *purchaseJournal) MarkUnresolved(intent *purchaseIntent, cause error) error {
	if intent == nil {
		return nil
	}
	intent.Status = intentStatusUnresolved
	if cause != nil {
		intent.Error = cause.Error()
	}
	return j.persist(intent)
}

// Unresolved replays the journal and returns intents whose final state is
// pending or unresolved: attempts whose outcome was never established.
func (j *purchaseJournal) Unresolved() []purchaseIntent {
	latest := make(map[string]purchaseIntent)
	var order []string

	for msg := range j.wal.Iterator() {
		var intent purchaseIntent
		if err := json.Unmarshal(msg.Value, &intent); err != nil {
			continue
		}
		if _, seen := latest[intent.ID]; !seen {
			order = append(order, intent.ID)
		}
		latest[intent.ID] = intent
	}

	var out []purchaseIntent
	for _, id := range order {
		intent := latest[id]
		if intent.Status == intentStatusPending || intent.Status == intentStatusUnresolved {
			out = append(out, intent)
		}
	}
	return out
}

func (j *purchaseJournal) Close() error {
	return j.wal.Close()
}

func (j *purchaseJournal) persist(intent *purchaseIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "failed to marshal purchase intent")
	}
	key := fmt.Sprintf("%s%s", purchaseIntentKeyPrefix, intent.ID)
	return j.wal.Write(j.wal.CurrentIndex()+1, key, data)
}
