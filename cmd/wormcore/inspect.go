package wormcore

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/wormhole-foundation/wormhole/core/pkg/governance"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

var InspectCmd = &cobra.Command{
	Use:   "inspect [HEX|FILENAME]",
	Short: "Decode a VAA and print its fields and digests",
	Run:   runInspect,
	Args:  cobra.ExactArgs(1),
}

func runInspect(cmd *cobra.Command, args []string) {
	data, err := readVAAArg(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Print(inspect(data))
}

func inspect(data []byte) string {
	v, err := vaa.Unmarshal(data)
	if err != nil {
		return fmt.Sprintf("failed to decode VAA: %v\n", err)
	}

	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
	out := cfg.Sdump(v)
	out += fmt.Sprintf("message id:    %s\n", v.MessageID())
	out += fmt.Sprintf("body hash:     %s\n", v.MessageHash().Hex())
	out += fmt.Sprintf("double keccak: %s\n", v.SigningDigest(vaa.DigestDoubleKeccak).Hex())
	out += fmt.Sprintf("single keccak: %s\n", v.SigningDigest(vaa.DigestSingleKeccak).Hex())

	if governance.DefaultGate().IsGovernanceVAA(v) {
		if h, _, err := governance.ParseHeader(v.Payload); err == nil {
			out += fmt.Sprintf("governance:    module %s action %d target chain %d\n", h.Module, h.Action, h.TargetChain)
		}
	}
	return out
}
