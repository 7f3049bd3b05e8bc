package calculator

import (
	"encoding/json"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"ruleengine/internal/value"
)

// WasmPlugin sandboxes a calculator plugin compiled to WebAssembly. The
// guest module must export "memory", an "alloc(i32) -> i32" allocator, and
// a "calculate(i32 ptr, i32 len) -> i32" entry point: the host writes the
// input map (each input rendered by Value.Debug) as JSON into guest memory
// via alloc and calls calculate. The returned i32 is the offset of an
// 8-byte header, [result offset u32 LE][result length u32 LE], locating a
// JSON-encoded result that is decoded as a single value; the guest has no
// way to return a calculator error through it.
type WasmPlugin struct {
	name      string
	engine    *wasmer.Engine
	store     *wasmer.Store
	instance  *wasmer.Instance
	mem       *wasmer.Memory
	alloc     func(...interface{}) (interface{}, error)
	calculate func(...interface{}) (interface{}, error)
}

// NewWasmPlugin compiles code and binds it under name.
func NewWasmPlugin(name string, code []byte) (*WasmPlugin, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	mod, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, fmt.Errorf("calculator: compiling wasm plugin %q: %w", name, err)
	}
	imports := wasmer.NewImportObject()
	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return nil, fmt.Errorf("calculator: instantiating wasm plugin %q: %w", name, err)
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, fmt.Errorf("calculator: wasm plugin %q missing memory export: %w", name, err)
	}
	alloc, err := instance.Exports.GetFunction("alloc")
	if err != nil {
		return nil, fmt.Errorf("calculator: wasm plugin %q missing alloc export: %w", name, err)
	}
	calc, err := instance.Exports.GetFunction("calculate")
	if err != nil {
		return nil, fmt.Errorf("calculator: wasm plugin %q missing calculate export: %w", name, err)
	}
	return &WasmPlugin{
		name: name, engine: engine, store: store, instance: instance,
		mem: mem, alloc: alloc, calculate: calc,
	}, nil
}

func (p *WasmPlugin) Name() string { return p.name }

func (p *WasmPlugin) Call(inputs map[string]value.Value) (value.Value, error) {
	debugInputs := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		debugInputs[k] = v.Debug()
	}
	payload, err := json.Marshal(debugInputs)
	if err != nil {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: encoding inputs: %w", p.name, err)
	}

	ptrv, err := p.alloc(int32(len(payload)))
	if err != nil {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: alloc: %w", p.name, err)
	}
	ptr, ok := ptrv.(int32)
	if !ok {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: alloc returned non-i32", p.name)
	}

	data := p.mem.Data()
	copy(data[ptr:], payload)

	resv, err := p.calculate(ptr, int32(len(payload)))
	if err != nil {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: calculate trapped: %w", p.name, err)
	}
	packed, ok := resv.(int32)
	if !ok {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: calculate returned non-i32", p.name)
	}

	// Result layout: the returned i32 is the offset of a header the guest
	// writes before returning, [offset:4][length:4] little-endian, which
	// locates the result body.
	outOff := uint32(packed)
	data = p.mem.Data()
	if int(outOff)+8 > len(data) {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: result header out of bounds", p.name)
	}
	resultOffset := leUint32(data[outOff : outOff+4])
	resultLen := leUint32(data[outOff+4 : outOff+8])
	if int(resultOffset)+int(resultLen) > len(data) {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: result body out of bounds", p.name)
	}
	raw := make([]byte, resultLen)
	copy(raw, data[resultOffset:resultOffset+resultLen])

	var out value.Value
	if err := json.Unmarshal(raw, &out); err != nil {
		return value.Null, fmt.Errorf("calculator: wasm plugin %q: decoding result: %w", p.name, err)
	}
	return out, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
