package asset

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Compilation records one attempt to run an external importer tool for an
// asset. Records are append-only; a failed attempt is kept alongside later
// successful ones.
type Compilation struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Duration  Duration  `json:"duration" yaml:"duration"`
	Command   string    `json:"command" yaml:"command"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the attempt recorded an error.
func (c Compilation) Failed() bool { return c.Error != "" }

// Duration wraps time.Duration with the persisted {secs, nanos} encoding.
type Duration struct {
	time.Duration
}

type durationDoc struct {
	Secs  int64 `json:"secs" yaml:"secs"`
	Nanos int64 `json:"nanos" yaml:"nanos"`
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(durationDoc{
		Secs:  int64(d.Duration / time.Second),
		Nanos: int64(d.Duration % time.Second),
	})
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var doc durationDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	d.Duration = time.Duration(doc.Secs)*time.Second + time.Duration(doc.Nanos)
	return nil
}
