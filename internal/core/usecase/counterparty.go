package usecase

import (
	"strings"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

// Resolution is the outcome of deciding which extracted entity is the
// owner's own business.
type Resolution struct {
	Counterparty       domain.ExtractedEntity
	MatchedUserAccount domain.MatchedAccount
	Direction          domain.InvoiceDirection
}

// ResolveCounterparty decides which of issuer/recipient is the owner and
// which is the counterparty, and in which direction the invoice flows.
//
// Signal cascade per entity, strongest first: VAT id exact match, declared
// IBAN exact match, connected-source IBAN exact match, name/alias substring
// match. The both-match case is treated as outgoing (self-invoice); that
// tie-break is a policy choice, not a derived truth.
func ResolveCounterparty(issuer, recipient domain.ExtractedEntity, identity *domain.UserIdentity, sourceIBANs []string) Resolution {
	if identity == nil {
		// Legacy fallback for owners without identity data.
		return Resolution{
			Counterparty:       issuer,
			MatchedUserAccount: domain.MatchedNone,
			Direction:          domain.DirectionUnknown,
		}
	}

	issuerMatches := entityMatchesUser(issuer, identity, sourceIBANs)
	recipientMatches := entityMatchesUser(recipient, identity, sourceIBANs)

	switch {
	case issuerMatches && !recipientMatches:
		return Resolution{Counterparty: recipient, MatchedUserAccount: domain.MatchedIssuer, Direction: domain.DirectionOutgoing}
	case !issuerMatches && recipientMatches:
		return Resolution{Counterparty: issuer, MatchedUserAccount: domain.MatchedRecipient, Direction: domain.DirectionIncoming}
	case issuerMatches && recipientMatches:
		return Resolution{Counterparty: recipient, MatchedUserAccount: domain.MatchedIssuer, Direction: domain.DirectionOutgoing}
	default:
		// Neither entity matches: forwarded or ambiguous document.
		return Resolution{Counterparty: issuer, MatchedUserAccount: domain.MatchedNone, Direction: domain.DirectionUnknown}
	}
}

func entityMatchesUser(entity domain.ExtractedEntity, identity *domain.UserIdentity, sourceIBANs []string) bool {
	if entity.Empty() {
		return false
	}

	if entity.VATID != "" {
		vat := NormalizeVATID(entity.VATID)
		for _, candidate := range identity.VATIDs {
			if vat == NormalizeVATID(candidate) {
				return true
			}
		}
	}

	if entity.IBAN != "" {
		iban := NormalizeIBAN(entity.IBAN)
		for _, candidate := range identity.IBANs {
			if iban == NormalizeIBAN(candidate) {
				return true
			}
		}
		for _, candidate := range sourceIBANs {
			if iban == NormalizeIBAN(candidate) {
				return true
			}
		}
	}

	if entity.Name != "" {
		names := make([]string, 0, len(identity.Aliases)+2)
		if identity.CompanyName != "" {
			names = append(names, identity.CompanyName)
		}
		if identity.PersonalName != "" {
			names = append(names, identity.PersonalName)
		}
		names = append(names, identity.Aliases...)

		entityName := strings.ToLower(strings.TrimSpace(entity.Name))
		for _, name := range names {
			candidate := strings.ToLower(strings.TrimSpace(name))
			if candidate == "" {
				continue
			}
			// Either direction of containment counts.
			if strings.Contains(entityName, candidate) || strings.Contains(candidate, entityName) {
				return true
			}
		}
	}

	return false
}

// NormalizeVATID uppercases and strips every non-alphanumeric rune.
// Idempotent: normalizing an already-normalized value returns it unchanged.
func NormalizeVATID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeIBAN uppercases and strips whitespace. Idempotent.
func NormalizeIBAN(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}
