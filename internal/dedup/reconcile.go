// Package dedup decides whether a freshly extracted draft is a posting the
// store already has.
package dedup

import (
	"context"
	"fmt"
	"log"

	"go-jdcrawler/internal/models"
)

// Outcome is how a draft was reconciled.
type Outcome int

const (
	Inserted Outcome = iota
	ExactMatch
	FuzzyMatch
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case ExactMatch:
		return "exact"
	case FuzzyMatch:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Store is the part of the record store reconciliation needs.
type Store interface {
	FindByURL(ctx context.Context, url string) (*models.Job, error)
	FindRecent(ctx context.Context, limit int) ([]*models.Job, error)
	// InsertJob stores job unless its URL exists; inserted reports which.
	InsertJob(ctx context.Context, job *models.Job) (stored *models.Job, inserted bool, err error)
}

type Thresholds struct {
	Company      float64
	Title        float64
	RecentWindow int
}

var DefaultThresholds = Thresholds{Company: 90, Title: 85, RecentWindow: 500}

// Result is the stored record a draft resolved to.
type Result struct {
	Job     *models.Job
	Outcome Outcome
	// CompanyScore and TitleScore are set for fuzzy matches.
	CompanyScore float64
	TitleScore   float64
}

type Reconciler struct {
	store      Store
	thresholds Thresholds
}

func NewReconciler(store Store, t Thresholds) *Reconciler {
	if t.Company <= 0 {
		t.Company = DefaultThresholds.Company
	}
	if t.Title <= 0 {
		t.Title = DefaultThresholds.Title
	}
	if t.RecentWindow <= 0 {
		t.RecentWindow = DefaultThresholds.RecentWindow
	}
	return &Reconciler{store: store, thresholds: t}
}

// Reconcile resolves one draft. The exact URL lookup always runs before
// any insert, so reconciling the same draft twice stores it once. The
// fuzzy pass only sees the most recent RecentWindow records; an older
// duplicate is inserted again.
func (r *Reconciler) Reconcile(ctx context.Context, d models.Draft) (Result, error) {
	existing, err := r.store.FindByURL(ctx, d.URL)
	if err != nil {
		return Result{}, fmt.Errorf("lookup %s: %w", d.URL, err)
	}
	if existing != nil {
		return Result{Job: existing, Outcome: ExactMatch}, nil
	}

	recent, err := r.store.FindRecent(ctx, r.thresholds.RecentWindow)
	if err != nil {
		return Result{}, fmt.Errorf("load recent jobs: %w", err)
	}
	if match, company, title := r.findSimilar(d, recent); match != nil {
		log.Printf("      🔁 Fuzzy duplicate: %q @ %s ~ #%d %q (company %.0f, title %.0f)",
			d.Title, d.Company, match.ID, match.Title, company, title)
		return Result{Job: match, Outcome: FuzzyMatch, CompanyScore: company, TitleScore: title}, nil
	}

	stored, inserted, err := r.store.InsertJob(ctx, models.NewJobFromDraft(d))
	if err != nil {
		return Result{}, fmt.Errorf("insert %s: %w", d.URL, err)
	}
	if !inserted {
		return Result{Job: stored, Outcome: ExactMatch}, nil
	}
	return Result{Job: stored, Outcome: Inserted}, nil
}

// findSimilar returns the newest record passing both thresholds.
func (r *Reconciler) findSimilar(d models.Draft, recent []*models.Job) (*models.Job, float64, float64) {
	for _, job := range recent {
		company := TokenSetRatio(d.Company, job.Company)
		if company < r.thresholds.Company {
			continue
		}
		title := TokenSetRatio(d.Title, job.Title)
		if title < r.thresholds.Title {
			continue
		}
		return job, company, title
	}
	return nil, 0, 0
}
