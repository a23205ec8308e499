// Package genesis loads the bootstrap document a wormcore node is initialised from.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"

	"github.com/wormhole-foundation/wormhole/core/pkg/core"
	"github.com/wormhole-foundation/wormhole/core/pkg/governance"
	"github.com/wormhole-foundation/wormhole/core/pkg/guardianset"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// Genesis is the initial configuration and guardian set 0 of a deployment.
type Genesis struct {
	ChainID           vaa.ChainID      `json:"chainId"`
	GuardianSetTTL    uint32           `json:"guardianSetTTL"`
	Guardians         []common.Address `json:"guardians"`
	GovernanceChain   vaa.ChainID      `json:"governanceChain"`
	GovernanceEmitter vaa.Address      `json:"governanceEmitter"`
}

func chainField(doc gjson.Result, field string) (vaa.ChainID, error) {
	v := doc.Get(field)
	switch v.Type {
	case gjson.Number:
		n := v.Uint()
		if n > 0xffff {
			return 0, fmt.Errorf("%s out of range: %d", field, n)
		}
		return vaa.ChainID(n), nil
	case gjson.String:
		c, err := vaa.ChainIDFromString(v.String())
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", field, err)
		}
		return c, nil
	default:
		return 0, fmt.Errorf("%s must be a number or chain name", field)
	}
}

// Parse decodes a genesis document. guardianSetTTL, governanceChain and governanceEmitter are optional.
func Parse(data []byte) (*Genesis, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("genesis is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	var (
		g   Genesis
		err error
	)
	if g.ChainID, err = chainField(doc, "chainId"); err != nil {
		return nil, err
	}
	if g.ChainID == vaa.ChainIDUnset {
		return nil, fmt.Errorf("chainId must not be 0")
	}

	g.GuardianSetTTL = guardianset.DefaultTTL
	if ttl := doc.Get("guardianSetTTL"); ttl.Exists() {
		if ttl.Type != gjson.Number || ttl.Uint() > 0xffffffff {
			return nil, fmt.Errorf("invalid guardianSetTTL: %s", ttl.Raw)
		}
		g.GuardianSetTTL = uint32(ttl.Uint()) // #nosec G115 -- checked above
	}

	guardians := doc.Get("guardians")
	if !guardians.IsArray() {
		return nil, fmt.Errorf("guardians must be an array of addresses")
	}
	for i, k := range guardians.Array() {
		if !common.IsHexAddress(k.String()) {
			return nil, fmt.Errorf("guardian [%d] is not an address: %s", i, k.Raw)
		}
		g.Guardians = append(g.Guardians, common.HexToAddress(k.String()))
	}
	if err := guardianset.ValidateKeys(g.Guardians); err != nil {
		return nil, err
	}

	g.GovernanceChain = vaa.GovernanceChain
	if doc.Get("governanceChain").Exists() {
		if g.GovernanceChain, err = chainField(doc, "governanceChain"); err != nil {
			return nil, err
		}
	}

	g.GovernanceEmitter = vaa.GovernanceEmitter
	if e := doc.Get("governanceEmitter"); e.Exists() {
		if g.GovernanceEmitter, err = vaa.StringToAddress(e.String()); err != nil {
			return nil, fmt.Errorf("invalid governanceEmitter: %w", err)
		}
	}
	return &g, nil
}

func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis: %w", err)
	}
	return Parse(data)
}

func (g *Genesis) Marshal() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// Config returns the bridge configuration of this deployment.
func (g *Genesis) Config(scheme vaa.DigestScheme) core.Config {
	cfg := core.DefaultConfig(g.ChainID)
	cfg.Gate = governance.Gate{EmitterChain: g.GovernanceChain, EmitterAddress: g.GovernanceEmitter}
	cfg.GuardianSetTTL = g.GuardianSetTTL
	cfg.DigestScheme = scheme
	return cfg
}
