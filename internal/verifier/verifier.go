// Package verifier hosts the join-split circuit verifier inside a wasmer-go
// runtime, grounded on the teacher's wasm virtual machine
// (core/virtual_machine.go): NewEngine/NewStore/NewModule/NewInstance, with
// a host-side import the circuit can call to emit debug traces. The wasm
// call boundary sits behind the small wasmModule interface so Verify's
// buffer and result handling can be tested without a real compiled module.
package verifier

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/veilchain/aggregator/internal/types"
)

const verifyExport = "verify_join_split"
const memoryExport = "memory"

// wasmModule is the narrow surface Verify needs from a loaded circuit
// module: its linear memory and its verify entry point.
type wasmModule interface {
	Data() []byte
	CallVerify(ptr, length int32) (int32, error)
}

// Verifier wraps one loaded join-split circuit module. It is safe for
// concurrent use only if module is: the real wasmer-backed module is not,
// since Verify writes into shared linear memory. Verifier does no locking,
// and neither does admission.Gate, which calls Verify directly from Admit.
type Verifier struct {
	module wasmModule
}

type wasmerModule struct {
	memory *wasmer.Memory
	verify func(...interface{}) (interface{}, error)
}

func (m *wasmerModule) Data() []byte { return m.memory.Data() }

func (m *wasmerModule) CallVerify(ptr, length int32) (int32, error) {
	result, err := m.verify(ptr, length)
	if err != nil {
		return 0, err
	}
	code, ok := result.(int32)
	if !ok {
		return 0, fmt.Errorf("verifier returned %T, expected int32", result)
	}
	return code, nil
}

// Load compiles and instantiates the wasm module at path. The module must
// export a "memory" and a function "verify_join_split(ptr i32, len i32) i32"
// returning nonzero for an accepted proof.
func Load(path string, log *logrus.Entry) (*Verifier, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Wrap(types.ErrConfig, "reading verifier module", err)
	}

	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)

	module, err := wasmer.NewModule(store, wasmBytes)
	if err != nil {
		return nil, types.Wrap(types.ErrConfig, "compiling verifier module", err)
	}

	importObject := wasmer.NewImportObject()
	hostLog := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			// circuit-side debug trace; args are (ptr, len) into linear memory
			log.WithFields(logrus.Fields{"ptr": args[0].I32(), "len": args[1].I32()}).Debug("verifier trace")
			return []wasmer.Value{}, nil
		},
	)
	if err := importObject.Register("env", map[string]wasmer.IntoExtern{"host_log": hostLog}); err != nil {
		return nil, types.Wrap(types.ErrConfig, "registering verifier host imports", err)
	}

	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, types.Wrap(types.ErrConfig, "instantiating verifier module", err)
	}

	memory, err := instance.Exports.GetMemory(memoryExport)
	if err != nil {
		return nil, types.Wrap(types.ErrConfig, "verifier module has no exported memory", err)
	}
	verify, err := instance.Exports.GetFunction(verifyExport)
	if err != nil {
		return nil, types.Wrap(types.ErrConfig, fmt.Sprintf("verifier module has no %q export", verifyExport), err)
	}

	return &Verifier{module: &wasmerModule{memory: memory, verify: verify}}, nil
}

// Verify copies proof into the instance's linear memory and calls the
// circuit's verify entry point, returning its boolean result.
func (v *Verifier) Verify(proof []byte) (bool, error) {
	data := v.module.Data()
	if len(proof) > len(data) {
		return false, types.New(types.ErrVerifierFailed, "proof larger than verifier linear memory")
	}
	const scratchOffset = 0
	copy(data[scratchOffset:], proof)

	code, err := v.module.CallVerify(scratchOffset, int32(len(proof)))
	if err != nil {
		return false, types.Wrap(types.ErrVerifierFailed, "verifier call trapped", err)
	}
	return code != 0, nil
}
