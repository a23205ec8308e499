package wormcore

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wormhole-foundation/wormhole/core/pkg/devnet"
	"github.com/wormhole-foundation/wormhole/core/pkg/genesis"
	"github.com/wormhole-foundation/wormhole/core/pkg/guardianset"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

var (
	devnetGuardians *int
	devnetChain     *string
)

func init() {
	devnetGuardians = DevnetGenesisCmd.Flags().Int("guardians", 1, "Number of deterministic devnet guardians")
	devnetChain = DevnetGenesisCmd.Flags().String("chain", "ethereum", "Chain the devnet node runs on (name or id)")
}

var DevnetGenesisCmd = &cobra.Command{
	Use:   "devnet-genesis",
	Short: "Print a genesis document using INSECURE deterministic devnet guardian keys",
	Run:   runDevnetGenesis,
}

func devnetGenesis(n int, chain string) (*genesis.Genesis, error) {
	if n < 1 || n > guardianset.MaxGuardians {
		return nil, fmt.Errorf("guardians must be between 1 and %d", guardianset.MaxGuardians)
	}
	chainID, err := vaa.ChainIDFromString(chain)
	if err != nil {
		return nil, err
	}
	return &genesis.Genesis{
		ChainID:           chainID,
		GuardianSetTTL:    guardianset.DefaultTTL,
		Guardians:         devnet.Addresses(devnet.InsecureGuardianKeys(n)),
		GovernanceChain:   vaa.GovernanceChain,
		GovernanceEmitter: vaa.GovernanceEmitter,
	}, nil
}

func runDevnetGenesis(cmd *cobra.Command, args []string) {
	g, err := devnetGenesis(*devnetGuardians, *devnetChain)
	if err != nil {
		fatalf("%v", err)
	}
	out, err := g.Marshal()
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(string(out))
}
