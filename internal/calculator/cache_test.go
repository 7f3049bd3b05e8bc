package calculator

import (
	"sync"
	"testing"

	"ruleengine/internal/value"
)

func TestEngineCompiledCacheReused(t *testing.T) {
	e := New(Config{CompiledCacheSize: 8})
	ctx := &Context{Vars: map[string]value.Value{"x": value.Int(2)}}
	for i := 0; i < 5; i++ {
		v, err := e.Eval("x*3", ctx)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if i, _ := v.AsInt(); i != 6 {
			t.Fatalf("got %v", v.Debug())
		}
	}
	if e.CompiledLen() != 1 {
		t.Fatalf("expected 1 cached expression, got %d", e.CompiledLen())
	}
}

func TestEngineMemoizationKeyedByVars(t *testing.T) {
	e := New(Config{CompiledCacheSize: 8, MemoCacheSize: 8})
	v1, err := e.Eval("x*2", &Context{Vars: map[string]value.Value{"x": value.Int(2)}})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	v2, err := e.Eval("x*2", &Context{Vars: map[string]value.Value{"x": value.Int(3)}})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if v1.Equal(v2) {
		t.Fatalf("expected different results for different var snapshots")
	}
}

func TestEngineConcurrentCompileIsSafe(t *testing.T) {
	e := New(Config{CompiledCacheSize: 8})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Eval("1+1", &Context{Vars: map[string]value.Value{}})
			if err != nil {
				t.Errorf("eval: %v", err)
			}
		}()
	}
	wg.Wait()
}
