// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package indexer

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/util/jsonapi"
)

const chainRelsCacheKey = "chainRels"

var ruleIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

func lower(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func (c *Client) MDCs(ctx context.Context, maker common.Address) ([]arbitration.MDC, error) {
	q := fmt.Sprintf(`{
  mdcs(where: {or: [{owner: "%[1]s"}, {responseMaker_: {id: "%[1]s"}}]}) {
    id
    owner
  }
}`, lower(maker))
	var out struct {
		Mdcs []arbitration.MDC `json:"mdcs"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	return out.Mdcs, nil
}

// ChainParameters returns nil if the chain is unknown. The full set is cached
// for a few seconds.
func (c *Client) ChainParameters(ctx context.Context, chainID uint64) (*arbitration.ChainParameters, error) {
	rels, ok := c.chainRels.Get(chainRelsCacheKey)
	if !ok {
		var out struct {
			ChainRels []arbitration.ChainParameters `json:"chainRels"`
		}
		err := c.query(ctx, `{
  chainRels {
    id
    nativeToken
    minVerifyChallengeSourceTxSecond
    minVerifyChallengeDestTxSecond
    maxVerifyChallengeSourceTxSecond
    maxVerifyChallengeDestTxSecond
    batchLimit
    enableTimestamp
    spvs
  }
}`, &out)
		if err != nil {
			return nil, err
		}
		rels = out.ChainRels
		c.chainRels.Add(chainRelsCacheKey, rels)
	}
	for i := range rels {
		if uint64(rels[i].ID) == chainID {
			params := rels[i]
			return &params, nil
		}
	}
	return nil, nil
}

// NextChallengeNodeNumber returns the smallest node number of mdc above
// nodeNumber, or nil if there is none.
func (c *Client) NextChallengeNodeNumber(ctx context.Context, mdc common.Address, nodeNumber *big.Int) (*big.Int, error) {
	q := fmt.Sprintf(`{
  createChallenges(
    where: {challengeNodeNumber_gt: "%s", challengeManager_: {mdcAddr: "%s"}}
    orderBy: challengeNodeNumber
    orderDirection: asc
    first: 1
  ) {
    challengeNodeNumber
  }
}`, nodeNumber.String(), lower(mdc))
	var out struct {
		CreateChallenges []struct {
			ChallengeNodeNumber jsonapi.BigString `json:"challengeNodeNumber"`
		} `json:"createChallenges"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	if len(out.CreateChallenges) == 0 {
		return nil, nil
	}
	return out.CreateChallenges[0].ChallengeNodeNumber.Big(), nil
}

// Rule returns the latest validated version of a rule, or nil.
func (c *Client) Rule(ctx context.Context, owner, ebc common.Address, ruleID string) (*arbitration.Rule, error) {
	if !ruleIDPattern.MatchString(ruleID) {
		return nil, fmt.Errorf("invalid rule id %q", ruleID)
	}
	q := fmt.Sprintf(`{
  mdcs(where: {owner: "%s"}) {
    ruleLatest(where: {ebcAddr: "%s"}) {
      ruleUpdateRel {
        ruleUpdateVersion(where: {id: "%s", ruleValidation: true}, first: 1) {
          chain0
          chain0CompensationRatio
          chain0ResponseTime
          chain0Status
          chain0Token
          chain0TradeFee
          chain0WithholdingFee
          chain0maxPrice
          chain0minPrice
          chain1
          chain1CompensationRatio
          chain1ResponseTime
          chain1Status
          chain1Token
          chain1TradeFee
          chain1WithholdingFee
          chain1maxPrice
          chain1minPrice
        }
      }
    }
  }
}`, lower(owner), lower(ebc), strings.ToLower(ruleID))
	var out struct {
		Mdcs []struct {
			RuleLatest []struct {
				RuleUpdateRel []struct {
					RuleUpdateVersion []arbitration.Rule `json:"ruleUpdateVersion"`
				} `json:"ruleUpdateRel"`
			} `json:"ruleLatest"`
		} `json:"mdcs"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	for _, mdc := range out.Mdcs {
		for _, latest := range mdc.RuleLatest {
			for _, rel := range latest.RuleUpdateRel {
				if len(rel.RuleUpdateVersion) > 0 {
					rule := rel.RuleUpdateVersion[0]
					return &rule, nil
				}
			}
		}
	}
	return nil, nil
}

// ResponseMakers returns the responder set of mdc in force at sourceTime.
func (c *Client) ResponseMakers(ctx context.Context, mdc common.Address, sourceTime uint64) ([]*big.Int, error) {
	q := fmt.Sprintf(`{
  mdcs(where: {id: "%[1]s", responseMakersSnapshot_: {enableTimestamp_lt: "%[2]d"}}) {
    responseMakersSnapshot(
      where: {enableTimestamp_lt: "%[2]d"}
      orderBy: enableTimestamp
      orderDirection: desc
    ) {
      responseMakerList
    }
  }
}`, lower(mdc), sourceTime)
	var out struct {
		Mdcs []struct {
			ResponseMakersSnapshot []struct {
				ResponseMakerList []jsonapi.BigString `json:"responseMakerList"`
			} `json:"responseMakersSnapshot"`
		} `json:"mdcs"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	for _, m := range out.Mdcs {
		for _, snapshot := range m.ResponseMakersSnapshot {
			if len(snapshot.ResponseMakerList) == 0 {
				continue
			}
			list := make([]*big.Int, len(snapshot.ResponseMakerList))
			for i := range snapshot.ResponseMakerList {
				list[i] = snapshot.ResponseMakerList[i].Big()
			}
			return list, nil
		}
	}
	return []*big.Int{}, nil
}

func (c *Client) ColumnArray(ctx context.Context, sourceTime uint64, mdc, owner common.Address) (*arbitration.ColumnArray, error) {
	q := fmt.Sprintf(`{
  columnArraySnapshots(
    where: {enableTimestamp_lt: "%d", mdc_: {id: "%s", owner: "%s"}}
    orderBy: enableTimestamp
    orderDirection: desc
    first: 1
  ) {
    dealers
    ebcs
    chainIds
  }
}`, sourceTime, lower(mdc), lower(owner))
	var out struct {
		ColumnArraySnapshots []arbitration.ColumnArray `json:"columnArraySnapshots"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	if len(out.ColumnArraySnapshots) == 0 {
		return nil, nil
	}
	return &out.ColumnArraySnapshots[0], nil
}

type challengeManager struct {
	Owner                          common.Address       `json:"owner"`
	VerifyPassChallenger           *common.Address      `json:"verifyPassChallenger"`
	ChallengeStatuses              string               `json:"challengeStatuses"`
	MdcAddr                        common.Address       `json:"mdcAddr"`
	VerifyChallengeSourceTimestamp jsonapi.Uint64String `json:"verifyChallengeSourceTimestamp"`
	VerifyChallengeDestTimestamp   jsonapi.Uint64String `json:"verifyChallengeDestTimestamp"`
	CreateChallenge                []struct {
		SourceTxHash common.Hash  `json:"sourceTxHash"`
		IsVerifyPass jsonapi.Flag `json:"isVerifyPass"`
	} `json:"createChallenge"`
}

// VerifyPassChallengers lists the challenges against owner whose source proof
// passed and that now wait for the maker's destination proof.
func (c *Client) VerifyPassChallengers(ctx context.Context, owner common.Address) ([]arbitration.VerifyPassChallenger, error) {
	q := fmt.Sprintf(`{
  challengeManagers(where: {owner: "%s"}) {
    owner
    verifyPassChallenger
    challengeStatuses
    createChallenge {
      sourceTxHash
      isVerifyPass
    }
  }
}`, lower(owner))
	var out struct {
		ChallengeManagers []challengeManager `json:"challengeManagers"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	var list []arbitration.VerifyPassChallenger
	for _, manager := range out.ChallengeManagers {
		if arbitration.ParseStatus(manager.ChallengeStatuses) != arbitration.StatusVerifySource || manager.VerifyPassChallenger == nil {
			continue
		}
		for _, created := range manager.CreateChallenge {
			if created.IsVerifyPass {
				list = append(list, arbitration.VerifyPassChallenger{
					Challenger:   *manager.VerifyPassChallenger,
					SourceTxHash: created.SourceTxHash,
				})
				break
			}
		}
	}
	return list, nil
}

type createChallenge struct {
	SourceChainID       jsonapi.Uint64String `json:"sourceChainId"`
	SourceTxTime        jsonapi.Uint64String `json:"sourceTxTime"`
	SourceTxBlockNum    jsonapi.Uint64String `json:"sourceTxBlockNum"`
	SourceTxIndex       jsonapi.Uint64String `json:"sourceTxIndex"`
	SourceTxHash        common.Hash          `json:"sourceTxHash"`
	RuleKey             string               `json:"ruleKey"`
	FreezeToken         string               `json:"freezeToken"`
	Challenger          common.Address       `json:"challenger"`
	ChallengeNodeNumber jsonapi.BigString    `json:"challengeNodeNumber"`
	ChallengeManager    *challengeManager    `json:"challengeManager"`
}

func (c *Client) challengesOf(ctx context.Context, owner common.Address) ([]createChallenge, error) {
	q := fmt.Sprintf(`{
  createChallenges(
    where: {challengeManager_: {owner: "%s"}}
    orderBy: challengeNodeNumber
    orderDirection: asc
  ) {
    sourceChainId
    sourceTxTime
    sourceTxBlockNum
    sourceTxHash
    freezeToken
    challenger
    challengeNodeNumber
    challengeManager {
      owner
      challengeStatuses
      mdcAddr
      verifyChallengeSourceTimestamp
      verifyChallengeDestTimestamp
    }
  }
}`, lower(owner))
	var out struct {
		CreateChallenges []createChallenge `json:"createChallenges"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	return out.CreateChallenges, nil
}

// VerifySourceHashes lists the source hashes of owner's challenges that wait
// for a destination proof.
func (c *Client) VerifySourceHashes(ctx context.Context, owner common.Address) ([]common.Hash, error) {
	challenges, err := c.challengesOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	var hashes []common.Hash
	for _, ch := range challenges {
		if ch.ChallengeManager != nil && arbitration.ParseStatus(ch.ChallengeManager.ChallengeStatuses) == arbitration.StatusVerifySource {
			hashes = append(hashes, ch.SourceTxHash)
		}
	}
	return hashes, nil
}

// OpenChallenges lists owner's unliquidated challenges by ascending node number.
func (c *Client) OpenChallenges(ctx context.Context, owner common.Address) ([]arbitration.OpenChallenge, error) {
	challenges, err := c.challengesOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	var list []arbitration.OpenChallenge
	for _, ch := range challenges {
		if ch.ChallengeManager == nil {
			continue
		}
		status := arbitration.ParseStatus(ch.ChallengeManager.ChallengeStatuses)
		if status == arbitration.StatusLiquidation {
			continue
		}
		list = append(list, arbitration.OpenChallenge{
			SourceChainID:         uint64(ch.SourceChainID),
			SourceTxHash:          ch.SourceTxHash,
			SourceTxTime:          uint64(ch.SourceTxTime),
			Challenger:            ch.Challenger,
			FreezeToken:           common.HexToAddress(ch.FreezeToken),
			MDCAddress:            ch.ChallengeManager.MdcAddr,
			Owner:                 ch.ChallengeManager.Owner,
			NodeNumber:            ch.ChallengeNodeNumber.Big(),
			Status:                status,
			VerifySourceTimestamp: uint64(ch.ChallengeManager.VerifyChallengeSourceTimestamp),
			VerifyDestTimestamp:   uint64(ch.ChallengeManager.VerifyChallengeDestTimestamp),
		})
	}
	return list, nil
}

func (c *Client) ChallengesBySourceHash(ctx context.Context, hash common.Hash) ([]arbitration.ExistingChallenge, error) {
	q := fmt.Sprintf(`{
  createChallenges(where: {sourceTxHash: "%s"}) {
    sourceTxTime
    sourceChainId
    sourceTxBlockNum
    sourceTxIndex
    sourceTxHash
    ruleKey
    freezeToken
  }
}`, strings.ToLower(hash.Hex()))
	var out struct {
		CreateChallenges []createChallenge `json:"createChallenges"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	list := make([]arbitration.ExistingChallenge, len(out.CreateChallenges))
	for i, ch := range out.CreateChallenges {
		list[i] = arbitration.ExistingChallenge{
			SourceTxTime:     uint64(ch.SourceTxTime),
			SourceChainID:    uint64(ch.SourceChainID),
			SourceTxBlockNum: uint64(ch.SourceTxBlockNum),
			SourceTxIndex:    uint64(ch.SourceTxIndex),
			SourceTxHash:     ch.SourceTxHash.Hex(),
			RuleKey:          ch.RuleKey,
			FreezeToken:      ch.FreezeToken,
		}
	}
	return list, nil
}

// VerifiedDataHashes lists the verified data hashes recorded for a dispute.
func (c *Client) VerifiedDataHashes(ctx context.Context, hash common.Hash) ([]common.Hash, error) {
	q := fmt.Sprintf(`{
  challengeManagers(where: {createChallenge_: {sourceTxHash: "%s"}}) {
    verifiedDataHash0
  }
}`, strings.ToLower(hash.Hex()))
	var out struct {
		ChallengeManagers []struct {
			VerifiedDataHash0 *common.Hash `json:"verifiedDataHash0"`
		} `json:"challengeManagers"`
	}
	if err := c.query(ctx, q, &out); err != nil {
		return nil, err
	}
	var hashes []common.Hash
	for _, m := range out.ChallengeManagers {
		if m.VerifiedDataHash0 != nil {
			hashes = append(hashes, *m.VerifiedDataHash0)
		}
	}
	return hashes, nil
}
