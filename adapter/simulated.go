package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elastos/go-did-sdk/did"
	"github.com/elastos/go-did-sdk/idchain"
)

// SimulatedIDChain is an in-memory ID chain for development and tests.
// It enforces the same acceptance rules as the real chain, signature
// validity, operation sequencing, previous-transaction matching, and
// serves resolution from its own state. It is both an idchain.Adapter
// and a did.Resolver.
type SimulatedIDChain struct {
	mu        sync.RWMutex
	histories map[string][]*idchain.Transaction // newest first
}

// NewSimulatedIDChain creates an empty chain.
func NewSimulatedIDChain() *SimulatedIDChain {
	return &SimulatedIDChain{histories: map[string][]*idchain.Transaction{}}
}

// Reset drops all recorded transactions.
func (c *SimulatedIDChain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histories = map[string][]*idchain.Transaction{}
}

// CreateIDTransaction implements idchain.Adapter.
func (c *SimulatedIDChain) CreateIDTransaction(ctx context.Context, payload, memo string) (string, error) {
	_ = memo

	req, err := idchain.ParseRequest([]byte(payload))
	if err != nil {
		return "", err
	}
	ok, err := req.IsValid(ctx, c)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", newError(did.CodeTransaction, "request proof for %s does not verify", req.Target())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := req.Target().String()
	history := c.histories[key]
	deactivated := len(history) > 0 && history[0].Request.Operation() == idchain.OperationDeactivate

	switch req.Operation() {
	case idchain.OperationCreate:
		if deactivated {
			return "", newError(did.CodeTransaction, "%s is deactivated", req.Target())
		}
		if len(history) > 0 {
			return "", newError(did.CodeTransaction, "%s is already published", req.Target())
		}
	case idchain.OperationUpdate:
		if len(history) == 0 {
			return "", newError(did.CodeTransaction, "%s is not published", req.Target())
		}
		if deactivated {
			return "", newError(did.CodeTransaction, "%s is deactivated", req.Target())
		}
		if req.PreviousTxid() != history[0].TXID {
			return "", newError(did.CodeTransaction,
				"previous transaction id %s does not match the latest %s", req.PreviousTxid(), history[0].TXID)
		}
	case idchain.OperationDeactivate:
		if len(history) == 0 {
			return "", newError(did.CodeTransaction, "%s is not published", req.Target())
		}
		if deactivated {
			return "", newError(did.CodeTransaction, "%s is already deactivated", req.Target())
		}
	}

	txid := uuid.NewString()
	c.histories[key] = append([]*idchain.Transaction{{
		TXID:      txid,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Request:   req,
	}}, history...)
	return txid, nil
}

// ResolveBiography returns the recorded history of a DID. With all
// false, only the transactions needed to reconstruct the current
// document are included.
func (c *SimulatedIDChain) ResolveBiography(ctx context.Context, d did.DID, all bool) (*idchain.Biography, error) {
	if d.IsEmpty() {
		return nil, newError(did.CodeIllegalArgument, "DID is empty")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.histories[d.String()]
	if len(history) == 0 {
		return &idchain.Biography{DID: d, Status: idchain.StatusNotFound}, nil
	}

	deactivated := history[0].Request.Operation() == idchain.OperationDeactivate
	status := idchain.StatusValid
	var transactions []*idchain.Transaction
	switch {
	case deactivated:
		status = idchain.StatusDeactivated
		if all {
			transactions = append(transactions, history...)
		} else {
			transactions = append(transactions, history[0])
			for _, tx := range history[1:] {
				if tx.Request.Document() != nil {
					transactions = append(transactions, tx)
					break
				}
			}
		}
	default:
		if doc := history[0].Request.Document(); doc != nil && doc.IsExpired() {
			status = idchain.StatusExpired
		}
		if all {
			transactions = append(transactions, history...)
		} else {
			transactions = append(transactions, history[0])
		}
	}
	return &idchain.Biography{DID: d, Status: status, Transactions: transactions}, nil
}

// Resolve implements did.Resolver. The simulated chain keeps no cache,
// so force changes nothing.
func (c *SimulatedIDChain) Resolve(ctx context.Context, d did.DID, force bool) (*did.Document, error) {
	_ = force
	if d.IsEmpty() {
		return nil, newError(did.CodeIllegalArgument, "DID is empty")
	}
	if !d.IsSupported() {
		return nil, newError(did.CodeResolve, "unsupported DID method %q", d.Method)
	}
	biography, err := c.ResolveBiography(ctx, d, false)
	if err != nil {
		return nil, err
	}
	return documentFromBiography(biography)
}
