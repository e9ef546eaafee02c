package submission

import (
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"
)

// FileNamer hands out upload names derived from the current time in
// milliseconds. Names never repeat, even for uploads in the same millisecond.
type FileNamer struct {
	clock clockwork.Clock
	mu    sync.Mutex
	last  int64
}

func NewFileNamer(clock clockwork.Clock) *FileNamer {
	return &FileNamer{clock: clock}
}

// Next returns a name such as "1768900000000.jpg". ext includes the dot.
func (n *FileNamer) Next(ext string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.clock.Now().UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	return strconv.FormatInt(ms, 10) + ext
}
