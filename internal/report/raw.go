package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Raw is the archival dump of one analysis for one provider.
type Raw struct {
	Platform       types.Platform         `json:"platform"`
	Status         types.Status           `json:"status"`
	Identity       *types.ProductIdentity `json:"identity"`
	Product        types.ProductRecord    `json:"product"`
	Reviews        []types.ReviewRecord   `json:"reviews"`
	QnA            []types.QnAPair        `json:"qna"`
	Analysis       *types.Narratives      `json:"analysis,omitempty"`
	Summary        RawSummary             `json:"summary"`
	StrategyYields map[string]int         `json:"strategy_yields,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// RawSummary carries the one-line collection summaries.
type RawSummary struct {
	Reviews string `json:"reviews"`
	QnA     string `json:"qna"`
}

// NewRaw assembles the dump. A narrative set without any text is left out.
func NewRaw(r *types.Result, n *types.Narratives, at time.Time) *Raw {
	raw := &Raw{
		Status:         r.Status,
		Identity:       r.Identity,
		Product:        r.Product,
		Reviews:        r.Reviews,
		QnA:            r.QnA,
		StrategyYields: r.StrategyYields,
		Warnings:       r.Warnings,
		GeneratedAt:    at,
	}
	if r.Identity != nil {
		raw.Platform = r.Identity.Platform
	}
	if raw.Reviews == nil {
		raw.Reviews = []types.ReviewRecord{}
	}
	if raw.QnA == nil {
		raw.QnA = []types.QnAPair{}
	}
	if n != nil && (n.Story != "" || n.Review != "" || n.QnA != "" || n.Full != "" || len(n.Errors) > 0) {
		raw.Analysis = n
	}
	sum := engine.Summarize(r)
	raw.Summary = RawSummary{Reviews: sum.Reviews, QnA: sum.QnA}
	return raw
}

func writeRaw(w io.Writer, r *types.Result, n *types.Narratives, at time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewRaw(r, n, at)); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
