package calculator

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"ruleengine/internal/value"
)

// Engine owns the compiled-AST cache and the optional memoization cache for
// one calculator layer. The zero value is not usable; construct with New.
type Engine struct {
	compiled *lru.Cache[string, node]
	group    singleflight.Group

	memoMu  sync.Mutex
	memo    *lru.Cache[string, value.Value]
	memoOn  bool
}

// Config sizes the two caches. MemoCacheSize of 0 disables memoization.
type Config struct {
	CompiledCacheSize int
	MemoCacheSize     int
}

func New(cfg Config) *Engine {
	size := cfg.CompiledCacheSize
	if size <= 0 {
		size = 1024
	}
	compiled, err := lru.New[string, node](size)
	if err != nil {
		panic("calculator: invalid compiled cache size: " + err.Error())
	}
	e := &Engine{compiled: compiled}
	if cfg.MemoCacheSize > 0 {
		memo, err := lru.New[string, value.Value](cfg.MemoCacheSize)
		if err != nil {
			panic("calculator: invalid memo cache size: " + err.Error())
		}
		e.memo = memo
		e.memoOn = true
	}
	return e
}

// compile returns the cached AST for src, parsing and caching it on first
// use. Concurrent compiles of the same never-before-seen source are
// deduplicated via singleflight so a burst of identical formulas only
// parses once.
func (e *Engine) compile(src string) (node, error) {
	if n, ok := e.compiled.Get(src); ok {
		return n, nil
	}
	v, err, _ := e.group.Do(src, func() (interface{}, error) {
		if n, ok := e.compiled.Get(src); ok {
			return n, nil
		}
		n, err := parse(src)
		if err != nil {
			return nil, err
		}
		e.compiled.Add(src, n)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(node), nil
}

// Eval compiles src (via the cache) and evaluates it against ctx, optionally
// consulting the memoization cache keyed by (src, variable snapshot).
func (e *Engine) Eval(src string, ctx *Context) (value.Value, error) {
	var memoKey string
	if e.memoOn {
		memoKey = memoKeyFor(src, ctx.Vars)
		if v, ok := e.memoGet(memoKey); ok {
			return v, nil
		}
	}
	n, err := e.compile(src)
	if err != nil {
		return value.Null, err
	}
	result, err := evalNode(n, ctx)
	if err != nil {
		return value.Null, err
	}
	if e.memoOn {
		e.memoPut(memoKey, result)
	}
	return result, nil
}

func (e *Engine) memoGet(key string) (value.Value, bool) {
	e.memoMu.Lock()
	defer e.memoMu.Unlock()
	return e.memo.Get(key)
}

func (e *Engine) memoPut(key string, v value.Value) {
	e.memoMu.Lock()
	defer e.memoMu.Unlock()
	e.memo.Add(key, v)
}

// memoKeyFor builds a deterministic key from the expression source and a
// snapshot of the variable bindings it closes over. Keys are sorted by name
// so iteration order never affects the result.
func memoKeyFor(src string, vars map[string]value.Value) string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString(src)
	sb.WriteByte(0)
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatUint(vars[name].Hash(), 16))
		sb.WriteByte(';')
	}
	return sb.String()
}

// CompiledLen reports the number of distinct expressions currently cached,
// for Stats reporting.
func (e *Engine) CompiledLen() int {
	return e.compiled.Len()
}
