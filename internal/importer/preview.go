package importer

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/sheet"
	"github.com/sells-group/marketarea-cli/internal/workbook"
)

// Preview is a parsed file awaiting confirmation.
type Preview struct {
	Source   string                   `json:"source"`
	Format   sheet.Format             `json:"format"`
	Drafts   []*model.MarketAreaDraft `json:"drafts"`
	Warnings []sheet.Warning          `json:"warnings,omitempty"`
}

// Confirmer reviews a preview and returns the drafts to import. It may edit
// or drop drafts. Returning ErrCancelled abandons the batch.
type Confirmer interface {
	Confirm(ctx context.Context, p *Preview) ([]*model.MarketAreaDraft, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p *Preview) ([]*model.MarketAreaDraft, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, p *Preview) ([]*model.MarketAreaDraft, error) {
	return f(ctx, p)
}

// ApproveAll confirms every draft unchanged.
var ApproveAll = ConfirmFunc(func(_ context.Context, p *Preview) ([]*model.MarketAreaDraft, error) {
	return p.Drafts, nil
})

// Load decodes and normalizes the file at path. Parse failures and empty
// sheets are returned before anything is resolved or saved.
func (c *Coordinator) Load(ctx context.Context, path string) (*Preview, error) {
	c.setState(StateFileSelected)
	if err := ctx.Err(); err != nil {
		c.setState(StateCancelled)
		return nil, eris.Wrap(ErrCancelled, err.Error())
	}

	c.setState(StateParsing)
	rows, err := workbook.Decode(path, c.bookOpts)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	return c.normalize(filepath.Base(path), rows)
}

// LoadBytes is Load for an uploaded file; name selects the decoder.
func (c *Coordinator) LoadBytes(ctx context.Context, name string, data []byte) (*Preview, error) {
	c.setState(StateFileSelected)
	if err := ctx.Err(); err != nil {
		c.setState(StateCancelled)
		return nil, eris.Wrap(ErrCancelled, err.Error())
	}

	c.setState(StateParsing)
	rows, err := workbook.DecodeBytes(name, data, c.bookOpts)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	return c.normalize(name, rows)
}

func (c *Coordinator) normalize(source string, rows workbook.Rows) (*Preview, error) {
	res, err := sheet.Normalize(rows, c.sheetOpts)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	c.log.Info("importer: preview ready",
		zap.String("source", source),
		zap.String("format", string(res.Format)),
		zap.Int("drafts", len(res.Drafts)),
		zap.Int("warnings", len(res.Warnings)),
	)

	c.setState(StatePreviewReady)
	return &Preview{Source: source, Format: res.Format, Drafts: res.Drafts, Warnings: res.Warnings}, nil
}

// Confirm hands the preview to confirmer. Cancelling, or approving nothing,
// leaves the coordinator cancelled with no side effects.
func (c *Coordinator) Confirm(ctx context.Context, p *Preview, confirmer Confirmer) ([]*model.MarketAreaDraft, error) {
	if p == nil {
		return nil, eris.New("importer: nothing to confirm")
	}
	if confirmer == nil {
		confirmer = ApproveAll
	}

	drafts, err := confirmer.Confirm(ctx, p)
	if err != nil {
		if eris.Is(err, ErrCancelled) {
			c.setState(StateCancelled)
			return nil, err
		}
		c.setState(StateFailed)
		return nil, eris.Wrap(err, "importer: confirm")
	}
	if len(drafts) == 0 {
		c.setState(StateCancelled)
		return nil, ErrCancelled
	}
	return drafts, nil
}
