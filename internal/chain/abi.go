package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const processorABIJSON = `[
  {"type":"function","name":"processRollup","stateMutability":"nonpayable","inputs":[
    {"name":"proofData","type":"bytes"},
    {"name":"signatures","type":"bytes"},
    {"name":"sigIndexes","type":"uint256[]"},
    {"name":"viewingKeys","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"nextRollupId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"dataSize","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"dataRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"nullRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"rootRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"getEscapeHatchStatus","stateMutability":"view","inputs":[],"outputs":[
    {"name":"escapeOpen","type":"bool"},
    {"name":"blocksRemaining","type":"uint256"}]},
  {"type":"event","name":"RollupProcessed","anonymous":false,"inputs":[{"name":"rollupId","type":"uint256","indexed":true}]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		// the ABI literals above are fixed at compile time; a parse failure
		// here means the literal itself is broken, not a runtime condition
		panic("chain: invalid embedded ABI JSON: " + err.Error())
	}
	return parsed
}

var (
	processorABI = mustParseABI(processorABIJSON)
	erc20ABI     = mustParseABI(erc20ABIJSON)
)
