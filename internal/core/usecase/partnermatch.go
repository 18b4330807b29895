package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/core/ports"
)

const (
	partnerVATConfidence       = 100
	partnerIBANConfidence      = 95
	partnerNameConfidence      = 90
	partnerSubstringConfidence = 70
)

// MatchDocumentPartnerUseCase links an extracted document to a known
// partner. Same scoring shape as the category matcher: strongest signal
// wins, suggestions below the threshold are dropped.
type MatchDocumentPartnerUseCase struct {
	docs     ports.DocumentRepository
	partners ports.PartnerRepository
	logger   *slog.Logger
}

func NewMatchDocumentPartnerUseCase(docs ports.DocumentRepository, partners ports.PartnerRepository, logger *slog.Logger) *MatchDocumentPartnerUseCase {
	return &MatchDocumentPartnerUseCase{docs: docs, partners: partners, logger: logger}
}

// MatchPartner computes suggestions for a document and persists the best
// one. Documents without extracted counterparty data complete the phase
// with no match.
func (uc *MatchDocumentPartnerUseCase) MatchPartner(ctx context.Context, documentID string) ([]domain.PartnerSuggestion, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}

	candidates, err := uc.partners.ListLocalByOwner(ctx, doc.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}

	suggestions := MatchPartnerCandidates(doc, candidates)

	best := domain.PartnerSuggestion{}
	if len(suggestions) > 0 {
		best = suggestions[0]
	}
	if err := uc.docs.SavePartnerMatch(ctx, documentID, best); err != nil {
		return nil, fmt.Errorf("save partner match: %w", err)
	}

	uc.logger.Info("partner match complete",
		"document_id", documentID, "suggestions", len(suggestions))
	return suggestions, nil
}

// MatchPartnerCandidates scores local partners against the document's
// denormalized counterparty fields.
func MatchPartnerCandidates(doc *domain.Document, candidates []domain.LocalPartner) []domain.PartnerSuggestion {
	if doc == nil || doc.IsNotInvoice {
		return nil
	}

	docVAT := ""
	if doc.ExtractedVATID != nil {
		docVAT = NormalizeVATID(*doc.ExtractedVATID)
	}
	docIBAN := ""
	if doc.ExtractedIBAN != nil {
		docIBAN = NormalizeIBAN(*doc.ExtractedIBAN)
	}
	docName := ""
	if doc.ExtractedPartner != nil {
		docName = strings.ToLower(strings.TrimSpace(*doc.ExtractedPartner))
	}

	var suggestions []domain.PartnerSuggestion
	for _, candidate := range candidates {
		confidence, matchedBy := scorePartnerCandidate(candidate, docVAT, docIBAN, docName)
		if confidence < SuggestionThreshold {
			continue
		}
		suggestions = append(suggestions, domain.PartnerSuggestion{
			PartnerID:   candidate.ID,
			PartnerType: domain.PartnerTypePrivate,
			MatchedBy:   matchedBy,
			Confidence:  confidence,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

func scorePartnerCandidate(candidate domain.LocalPartner, docVAT, docIBAN, docName string) (int, string) {
	if docVAT != "" && candidate.VATID != "" && NormalizeVATID(candidate.VATID) == docVAT {
		return partnerVATConfidence, "vat_id"
	}

	if docIBAN != "" {
		for _, iban := range candidate.IBANs {
			if NormalizeIBAN(iban) == docIBAN {
				return partnerIBANConfidence, "iban"
			}
		}
	}

	if docName == "" {
		return 0, ""
	}

	names := append([]string{candidate.Name}, candidate.Aliases...)
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if normalized == docName {
			return partnerNameConfidence, "name"
		}
	}
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if strings.Contains(docName, normalized) || strings.Contains(normalized, docName) {
			return partnerSubstringConfidence, "name_substring"
		}
	}
	return 0, ""
}
