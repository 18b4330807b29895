package usecase

import (
	"context"
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func extractedDocument() *domain.Document {
	return &domain.Document{
		ID:                 "doc-1",
		OwnerID:            "owner-1",
		ExtractionComplete: true,
		ExtractedPartner:   strPtr("Cloud Hosting Ltd"),
		ExtractedVATID:     strPtr("GB 999 9123 45"),
		ExtractedIBAN:      strPtr("gb33 bukb 2020 1555 5555 55"),
	}
}

func TestMatchPartnerCandidatesSignalPriority(t *testing.T) {
	candidates := []domain.LocalPartner{
		{ID: "p-vat", OwnerID: "owner-1", Name: "Unrelated Name", VATID: "GB999912345"},
		{ID: "p-iban", OwnerID: "owner-1", Name: "Other Name", IBANs: []string{"GB33BUKB20201555555555"}},
		{ID: "p-name", OwnerID: "owner-1", Name: "cloud hosting ltd"},
		{ID: "p-substring", OwnerID: "owner-1", Name: "Cloud Hosting"},
	}

	got := MatchPartnerCandidates(extractedDocument(), candidates)
	if len(got) != maxSuggestions {
		t.Fatalf("expected %d suggestions, got %d", maxSuggestions, len(got))
	}
	if got[0].PartnerID != "p-vat" || got[0].Confidence != partnerVATConfidence || got[0].MatchedBy != "vat_id" {
		t.Fatalf("unexpected top suggestion: %+v", got[0])
	}
	if got[1].PartnerID != "p-iban" || got[1].Confidence != partnerIBANConfidence {
		t.Fatalf("unexpected second suggestion: %+v", got[1])
	}
	if got[2].PartnerID != "p-name" || got[2].Confidence != partnerNameConfidence {
		t.Fatalf("unexpected third suggestion: %+v", got[2])
	}
	for _, s := range got {
		if s.PartnerType != domain.PartnerTypePrivate {
			t.Fatalf("suggestion type = %q, want private", s.PartnerType)
		}
	}
}

func TestMatchPartnerCandidatesAliasSubstring(t *testing.T) {
	doc := &domain.Document{
		ID:               "doc-1",
		OwnerID:          "owner-1",
		ExtractedPartner: strPtr("AWS EMEA SARL"),
	}
	candidates := []domain.LocalPartner{
		{ID: "p-1", OwnerID: "owner-1", Name: "Amazon Web Services", Aliases: []string{"AWS"}},
	}

	got := MatchPartnerCandidates(doc, candidates)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].Confidence != partnerSubstringConfidence || got[0].MatchedBy != "name_substring" {
		t.Fatalf("unexpected suggestion: %+v", got[0])
	}
}

func TestMatchPartnerCandidatesSkipsNotInvoice(t *testing.T) {
	doc := extractedDocument()
	doc.IsNotInvoice = true
	candidates := []domain.LocalPartner{{ID: "p-1", OwnerID: "owner-1", Name: "Cloud Hosting Ltd"}}

	if got := MatchPartnerCandidates(doc, candidates); got != nil {
		t.Fatalf("expected no suggestions for not-invoice document, got %+v", got)
	}
}

func TestMatchPartnerPersistsBestSuggestion(t *testing.T) {
	repo := &repoFake{doc: extractedDocument()}
	partners := &partnerRepoFake{
		locals: []domain.LocalPartner{
			{ID: "p-vat", OwnerID: "owner-1", Name: "Whatever", VATID: "GB999912345"},
		},
	}
	uc := NewMatchDocumentPartnerUseCase(repo, partners, discardLogger())

	got, err := uc.MatchPartner(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("MatchPartner() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if repo.savedPartnerMatch == nil || repo.savedPartnerMatch.PartnerID != "p-vat" {
		t.Fatalf("expected best suggestion persisted, got %+v", repo.savedPartnerMatch)
	}
}

func TestMatchPartnerNoCounterpartyDataCompletesEmpty(t *testing.T) {
	repo := &repoFake{doc: &domain.Document{ID: "doc-1", OwnerID: "owner-1", ExtractionComplete: true}}
	partners := &partnerRepoFake{
		locals: []domain.LocalPartner{{ID: "p-1", OwnerID: "owner-1", Name: "Cloud Hosting Ltd"}},
	}
	uc := NewMatchDocumentPartnerUseCase(repo, partners, discardLogger())

	got, err := uc.MatchPartner(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("MatchPartner() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
	if repo.savedPartnerMatch == nil || repo.savedPartnerMatch.PartnerID != "" {
		t.Fatalf("expected empty match persisted to complete the phase, got %+v", repo.savedPartnerMatch)
	}
}
