package indexer

import (
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codesync/internal/logging"
)

// Progress receives upload progress for one sync cycle. Hosts can plug
// in an editor progress surface; the default reports through the log.
type Progress interface {
	// Begin is called once with the number of files to upload.
	Begin(total int)

	// Update is called after each file is processed (uploaded or
	// dropped).
	Update(processed, total int)

	// End is called when the cycle's queue has drained.
	End()
}

// LogProgress reports progress through the logger.
type LogProgress struct {
	log *logging.Logger
}

// NewLogProgress creates the default progress reporter.
func NewLogProgress(log *logging.Logger) *LogProgress {
	return &LogProgress{log: log.Named("progress")}
}

func (p *LogProgress) Begin(total int) {
	p.log.Info("uploading diverging files", zap.Int("total", total))
}

func (p *LogProgress) Update(processed, total int) {
	p.log.Debug("upload progress", zap.Int("processed", processed), zap.Int("total", total))
}

func (p *LogProgress) End() {
	p.log.Info("upload queue drained")
}
