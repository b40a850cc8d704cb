// Credsync - Partner Training Synchronization and Reconciliation
// Copyright 2026 The Credsync Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/credsync/credsync

package prm

import (
	"time"

	"github.com/goccy/go-json"
)

// Envelope wraps every PRM response: { success, data: { count, results } }.
// Results stays raw so one envelope type serves every object type; the client
// decodes it into the caller's record slice after checking Success.
type Envelope struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    *EnvelopeData `json:"data"`
}

// EnvelopeData carries the result window and the total match count. Count is
// the exact number of objects matching the filter, not the page size, so
// progress totals from the PRM are exact rather than estimated.
type EnvelopeData struct {
	Count   int             `json:"count"`
	Results json.RawMessage `json:"results"`
}

// Account is a PRM partner-organization object. CrmID is the upstream CRM
// identifier in either its 15- or 18-character form; canonicalization to the
// 15-character key happens locally. WebDomains is semicolon-separated.
type Account struct {
	ID           string    `json:"Id"`
	CrmID        string    `json:"CrmId"`
	Name         string    `json:"Name"`
	Tier         string    `json:"Tier,omitempty"`
	Region       string    `json:"Region,omitempty"`
	IsActive     bool      `json:"IsActive"`
	WebDomains   string    `json:"WebDomains,omitempty"`
	ModifiedDate time.Time `json:"ModifiedDate"`
}

// User is a PRM person object scoped to an Account.
type User struct {
	ID           string    `json:"Id"`
	AccountID    string    `json:"AccountId"`
	Email        string    `json:"Email"`
	FirstName    string    `json:"FirstName"`
	LastName     string    `json:"LastName"`
	Title        string    `json:"Title,omitempty"`
	IsActive     bool      `json:"IsActive"`
	ModifiedDate time.Time `json:"ModifiedDate"`
}

// Lead is a PRM sales-lead object. CrmAccountID references the partner
// organization the lead was distributed to, in CRM identifier form.
type Lead struct {
	ID           string    `json:"Id"`
	CrmAccountID string    `json:"CrmAccountId,omitempty"`
	FirstName    string    `json:"FirstName"`
	LastName     string    `json:"LastName"`
	Email        string    `json:"Email"`
	Company      string    `json:"Company,omitempty"`
	Status       string    `json:"Status"`
	Source       string    `json:"Source,omitempty"`
	CreatedDate  time.Time `json:"CreatedDate"`
	ModifiedDate time.Time `json:"ModifiedDate"`
}
