package ping

import "time"

type Kind string

// The empty kind marks a plain success ping.
const (
	KindSuccess Kind = ""
	KindStart   Kind = "start"
	KindFail    Kind = "fail"
	KindIgn     Kind = "ign"
)

// Bodies above this size go to object storage instead of the row itself.
const InlineBodyLimit = 100

type Ping struct {
	ID         int64          `json:"id"`
	CheckID    int64          `json:"check_id"`
	N          int64          `json:"n"`
	CreatedAt  time.Time      `json:"created_at"`
	Kind       Kind           `json:"kind"`
	Scheme     string         `json:"scheme"`
	Method     string         `json:"method"`
	RemoteAddr string         `json:"remote_addr"`
	UserAgent  string         `json:"ua"`
	Body       string         `json:"body"`
	BodyRaw    []byte         `json:"body_raw"`
	ObjectSize int64          `json:"object_size"`
	ExitStatus *int           `json:"exitstatus"`
	Delta      *time.Duration `json:"delta"`
}

// Completion reports whether the ping closes a run (success or fail).
func (p *Ping) Completion() bool {
	return p.Kind == KindSuccess || p.Kind == KindFail
}

// BodyText resolves the stored payload to text. Bodies archived in object
// storage are not fetched here; callers hydrate Body first if they need it.
func (p *Ping) BodyText() string {
	if p.Body != "" {
		return p.Body
	}
	return string(p.BodyRaw)
}

// HasBody reports whether any payload text is available without I/O.
func (p *Ping) HasBody() bool {
	return p.Body != "" || len(p.BodyRaw) > 0
}
