package wormcore

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/wormhole-foundation/wormhole/core/pkg/genesis"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

var (
	genesisPath *string
	digestName  *string
)

func genesisFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("genesis", pflag.ExitOnError)
	genesisPath = fs.String("genesis", "", "Path to the genesis JSON document (required)")
	digestName = fs.String("digestScheme", "double-keccak", "Digest guardians sign (double-keccak, single-keccak)")
	return fs
}

func loadGenesis() (*genesis.Genesis, error) {
	if *genesisPath == "" {
		return nil, errors.New("please specify --genesis")
	}
	return genesis.Load(*genesisPath)
}

func digestScheme() (vaa.DigestScheme, error) {
	return vaa.ParseDigestScheme(*digestName)
}
