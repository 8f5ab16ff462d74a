package did

import "time"

// DocumentMetadata is the mutable bookkeeping attached to a document.
// It never takes part in canonical serialization or signing; resolvers
// and stores fill it in as a document moves through them.
type DocumentMetadata struct {
	alias       string
	txid        string
	signature   string
	published   time.Time
	deactivated bool
}

// Alias returns the user-assigned alias.
func (m *DocumentMetadata) Alias() string { return m.alias }

// SetAlias assigns a local alias.
func (m *DocumentMetadata) SetAlias(alias string) { m.alias = alias }

// TransactionID returns the ID-chain transaction the document was
// resolved from, if any.
func (m *DocumentMetadata) TransactionID() string { return m.txid }

// SetTransactionID records the resolving transaction.
func (m *DocumentMetadata) SetTransactionID(txid string) { m.txid = txid }

// Signature returns the proof signature of the last published revision.
func (m *DocumentMetadata) Signature() string { return m.signature }

// SetSignature records the last published revision's signature.
func (m *DocumentMetadata) SetSignature(signature string) { m.signature = signature }

// Published returns when the resolved transaction was recorded.
func (m *DocumentMetadata) Published() time.Time { return m.published }

// SetPublished records the transaction timestamp.
func (m *DocumentMetadata) SetPublished(t time.Time) { m.published = t }

// Deactivated reports whether the DID has been deactivated on chain.
func (m *DocumentMetadata) Deactivated() bool { return m.deactivated }

// SetDeactivated flags the DID as deactivated.
func (m *DocumentMetadata) SetDeactivated(deactivated bool) { m.deactivated = deactivated }

// CredentialMetadata is the mutable bookkeeping attached to a credential.
type CredentialMetadata struct {
	alias string
}

// Alias returns the user-assigned alias.
func (m *CredentialMetadata) Alias() string { return m.alias }

// SetAlias assigns a local alias.
func (m *CredentialMetadata) SetAlias(alias string) { m.alias = alias }
