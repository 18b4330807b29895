package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

// defaultSuggestionScanLimit bounds the recently-updated-transactions scan
// used to rewrite partner suggestions; it is not an exhaustive pass.
const defaultSuggestionScanLimit = 200

// LocalizePartnersUseCase converts global partner assignments on an
// owner's transactions into owner-private partner records. Safe to run
// repeatedly and safe against partial prior completion.
type LocalizePartnersUseCase struct {
	partners     ports.PartnerRepository
	transactions ports.TransactionRepository
	scanLimit    int
	logger       *slog.Logger

	// Per-owner serialization: the lookup-then-create of a local partner
	// is a check-then-act region that must never race for the same owner.
	mu     sync.Mutex
	owners map[string]*sync.Mutex
}

func NewLocalizePartnersUseCase(partners ports.PartnerRepository, transactions ports.TransactionRepository, suggestionScanLimit int, logger *slog.Logger) *LocalizePartnersUseCase {
	if suggestionScanLimit <= 0 {
		suggestionScanLimit = defaultSuggestionScanLimit
	}
	return &LocalizePartnersUseCase{
		partners:     partners,
		transactions: transactions,
		scanLimit:    suggestionScanLimit,
		logger:       logger,
		owners:       make(map[string]*sync.Mutex),
	}
}

func (uc *LocalizePartnersUseCase) ownerLock(ownerID string) *sync.Mutex {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	lock, ok := uc.owners[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		uc.owners[ownerID] = lock
	}
	return lock
}

// Localize runs the reconciliation job for one owner. Each global partner
// group is processed sequentially; a failing group is logged and skipped
// so a partial run stays resumable.
func (uc *LocalizePartnersUseCase) Localize(ctx context.Context, ownerID string) (domain.LocalizeReport, error) {
	lock := uc.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	var report domain.LocalizeReport

	transactions, err := uc.transactions.ListByGlobalPartner(ctx, ownerID)
	if err != nil {
		return report, fmt.Errorf("list global-partner transactions: %w", err)
	}

	groups := map[string][]string{}
	for _, tx := range transactions {
		if tx.PartnerID == "" {
			continue
		}
		groups[tx.PartnerID] = append(groups[tx.PartnerID], tx.ID)
	}

	globalIDs := make([]string, 0, len(groups))
	for globalID := range groups {
		globalIDs = append(globalIDs, globalID)
	}
	sort.Strings(globalIDs)

	localByGlobal := map[string]string{}
	for _, globalID := range globalIDs {
		localID, created, err := uc.localizeGroup(ctx, ownerID, globalID)
		if err != nil {
			report.GroupsSkipped++
			uc.logger.Warn("skipping global partner group",
				"owner_id", ownerID, "global_partner_id", globalID, "error", err)
			continue
		}
		if created {
			report.PartnersCreated++
		}
		localByGlobal[globalID] = localID

		updated, err := uc.transactions.RetargetPartner(ctx, groups[globalID], localID)
		if err != nil {
			report.GroupsSkipped++
			uc.logger.Warn("retarget transactions failed",
				"owner_id", ownerID, "global_partner_id", globalID, "error", err)
			continue
		}
		report.TransactionsUpdated += updated
	}

	if err := uc.rewriteSuggestions(ctx, ownerID, localByGlobal); err != nil {
		// Suggestion rewriting is a consistency nicety for UI navigation;
		// the hard assignments above already landed.
		uc.logger.Warn("rewrite partner suggestions failed", "owner_id", ownerID, "error", err)
	}

	uc.logger.Info("localize run complete",
		"owner_id", ownerID,
		"partners_created", report.PartnersCreated,
		"transactions_updated", report.TransactionsUpdated,
		"groups_skipped", report.GroupsSkipped,
	)
	return report, nil
}

// localizeGroup reuses an existing local partner for the global id or
// creates exactly one copy. The existence re-check sits immediately before
// the create on purpose.
func (uc *LocalizePartnersUseCase) localizeGroup(ctx context.Context, ownerID, globalID string) (string, bool, error) {
	existing, err := uc.partners.FindLocalByGlobalID(ctx, ownerID, globalID)
	if err != nil {
		return "", false, fmt.Errorf("find local partner: %w", err)
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	global, err := uc.partners.GetGlobal(ctx, globalID)
	if err != nil {
		return "", false, fmt.Errorf("fetch global partner: %w", err)
	}

	local := &domain.LocalPartner{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		GlobalID:  global.ID,
		Name:      global.Name,
		Aliases:   append([]string(nil), global.Aliases...),
		Address:   global.Address,
		VATID:     global.VATID,
		IBANs:     append([]string(nil), global.IBANs...),
		Website:   global.Website,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.partners.CreateLocal(ctx, local); err != nil {
		return "", false, fmt.Errorf("create local partner: %w", err)
	}
	return local.ID, true, nil
}

// rewriteSuggestions repoints partner suggestions that still reference a
// global partner with a local counterpart, over a bounded recent window.
func (uc *LocalizePartnersUseCase) rewriteSuggestions(ctx context.Context, ownerID string, localByGlobal map[string]string) error {
	if len(localByGlobal) == 0 {
		return nil
	}

	recent, err := uc.transactions.ListRecentlyUpdated(ctx, ownerID, uc.scanLimit)
	if err != nil {
		return fmt.Errorf("list recent transactions: %w", err)
	}

	for _, tx := range recent {
		changed := false
		rewritten := make([]domain.PartnerSuggestion, len(tx.PartnerSuggestions))
		for i, suggestion := range tx.PartnerSuggestions {
			rewritten[i] = suggestion
			if suggestion.PartnerType != domain.PartnerTypeGlobal {
				continue
			}
			localID, ok := localByGlobal[suggestion.PartnerID]
			if !ok {
				continue
			}
			rewritten[i].PartnerID = localID
			rewritten[i].PartnerType = domain.PartnerTypePrivate
			changed = true
		}
		if !changed {
			continue
		}
		if err := uc.transactions.SavePartnerSuggestions(ctx, tx.ID, rewritten); err != nil {
			return fmt.Errorf("save suggestions for transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}
