// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const recordsPath = "/arbitrationHash"

// StateStore is a path addressed document store. Set merges the top level
// fields of value into the document at path.
type StateStore interface {
	Get(ctx context.Context, path string, out any) (bool, error)
	Set(ctx context.Context, path string, value any) error
	Delete(ctx context.Context, path string) error
	Children(ctx context.Context, path string) ([]string, error)
}

// DisputeRecord is the local state of one dispute, keyed by source tx hash.
type DisputeRecord struct {
	Challenger                common.Address `json:"challenger"`
	FromChainID               uint64         `json:"fromChainId,omitempty"`
	SubmitSourceTxHash        *common.Hash   `json:"submitSourceTxHash,omitempty"`
	VerifyChallengeSourceHash *common.Hash   `json:"verifyChallengeSourceHash,omitempty"`
	VerifyChallengeDestHash   *common.Hash   `json:"verifyChallengeDestHash,omitempty"`
	CheckChallengeHash        *common.Hash   `json:"checkChallengeHash,omitempty"`
	NeedsProof                bool           `json:"needsProof"`
	Message                   string         `json:"message"`
	AlreadyExists             bool           `json:"alreadyExists"`
}

// Terminal records are never acted on again.
func (r *DisputeRecord) Terminal() bool {
	return r.CheckChallengeHash != nil || r.AlreadyExists
}

// RecordStore keeps DisputeRecords under /arbitrationHash/<lower-case hash>.
type RecordStore struct {
	store StateStore
}

func NewRecordStore(store StateStore) *RecordStore {
	return &RecordStore{store: store}
}

func recordPath(hash common.Hash) string {
	return recordsPath + "/" + strings.ToLower(hash.Hex())
}

// Get returns nil when no record exists.
func (s *RecordStore) Get(ctx context.Context, hash common.Hash) (*DisputeRecord, error) {
	var record DisputeRecord
	found, err := s.store.Get(ctx, recordPath(hash), &record)
	if err != nil {
		return nil, errors.Wrapf(err, "reading record %v", hash)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

func (s *RecordStore) Put(ctx context.Context, hash common.Hash, record *DisputeRecord) error {
	return errors.Wrapf(s.store.Set(ctx, recordPath(hash), record), "writing record %v", hash)
}

// Update applies fn to the current record, or to an empty one if none exists.
func (s *RecordStore) Update(ctx context.Context, hash common.Hash, fn func(*DisputeRecord)) error {
	record, err := s.Get(ctx, hash)
	if err != nil {
		return err
	}
	if record == nil {
		record = &DisputeRecord{}
	}
	fn(record)
	return s.Put(ctx, hash, record)
}

func (s *RecordStore) Delete(ctx context.Context, hash common.Hash) error {
	return errors.Wrapf(s.store.Delete(ctx, recordPath(hash)), "deleting record %v", hash)
}

// Hashes lists every source tx hash with a record.
func (s *RecordStore) Hashes(ctx context.Context) ([]common.Hash, error) {
	children, err := s.store.Children(ctx, recordsPath)
	if err != nil {
		return nil, errors.Wrap(err, "listing records")
	}
	hashes := make([]common.Hash, 0, len(children))
	for _, child := range children {
		if len(child) != 66 || !strings.HasPrefix(child, "0x") {
			continue
		}
		hashes = append(hashes, common.HexToHash(child))
	}
	return hashes, nil
}

type PendingRecord struct {
	Hash   common.Hash
	Record *DisputeRecord
}

// PendingProofs returns the records flagged needsProof, in hash order.
func (s *RecordStore) PendingProofs(ctx context.Context) ([]PendingRecord, error) {
	hashes, err := s.Hashes(ctx)
	if err != nil {
		return nil, err
	}
	var pending []PendingRecord
	for _, hash := range hashes {
		record, err := s.Get(ctx, hash)
		if err != nil {
			return nil, err
		}
		if record != nil && record.NeedsProof && !record.Terminal() {
			pending = append(pending, PendingRecord{Hash: hash, Record: record})
		}
	}
	return pending, nil
}
