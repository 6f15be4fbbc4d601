// Package dynamic compiles user-supplied JavaScript function bodies into
// tools that run in a fresh goja sandbox per call.
package dynamic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/metrics"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"golang.org/x/sync/semaphore"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

const (
	DefaultTimeout = 2 * time.Second

	// DefaultMaxCallStack caps recursion depth inside a sandbox.
	DefaultMaxCallStack  = 1024
	DefaultMaxConcurrent = 8

	// DefaultMaxHeapGrowth is the heap a single call may add before it is
	// interrupted.
	DefaultMaxHeapGrowth = 64 << 20
)

// heapMetric counts bytes in heap objects, live or not yet swept.
const heapMetric = "/memory/classes/heap/objects:bytes"

var memoryPollInterval = 5 * time.Millisecond

var identifierRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Options tune every sandbox the compiler creates.
type Options struct {
	Timeout      time.Duration
	MaxCallStack int

	// MaxConcurrent bounds how many sandboxes run at once across all
	// tools of this compiler. Further calls wait for a slot.
	MaxConcurrent int

	// MaxHeapGrowth is the process heap growth, in bytes, tolerated while a
	// call runs. The heap is process-wide, so concurrent work counts too.
	MaxHeapGrowth uint64

	Logger *slog.Logger
}

// Compiler turns code into tools of kind schema.KindDynamic.
type Compiler struct {
	timeout  time.Duration
	maxStack int
	maxHeap  uint64
	slots    *semaphore.Weighted
	logger   *slog.Logger
}

func NewCompiler(opts Options) *Compiler {
	c := &Compiler{
		timeout:  opts.Timeout,
		maxStack: opts.MaxCallStack,
		maxHeap:  opts.MaxHeapGrowth,
		logger:   opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxStack <= 0 {
		c.maxStack = DefaultMaxCallStack
	}
	if c.maxHeap == 0 {
		c.maxHeap = DefaultMaxHeapGrowth
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	c.slots = semaphore.NewWeighted(int64(maxConcurrent))
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "dynamic")
	return c
}

// Compile validates the definition and returns the tool. The code is the
// body of an async function whose parameters are the declared property
// names, in declared order. Syntax errors are reported here, not at call
// time.
func (c *Compiler) Compile(name, description string, params *schema.Parameters, code string) (schema.Tool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return schema.Tool{}, fmt.Errorf("%w: name is required", schema.ErrInvalidTool)
	}
	if strings.TrimSpace(code) == "" {
		return schema.Tool{}, fmt.Errorf("%w: %q: code is required", schema.ErrInvalidTool, name)
	}
	if params == nil {
		params = schema.EmptyParameters()
	}

	names := params.Names()
	for _, n := range names {
		if !identifierRE.MatchString(n) {
			return schema.Tool{}, fmt.Errorf("%w: %q: parameter %q is not a valid identifier", schema.ErrInvalidTool, name, n)
		}
	}

	src := "(async function(" + strings.Join(names, ", ") + ") {\n" + code + "\n})"
	parsed, err := goja.Parse(name, src)
	if err != nil {
		return schema.Tool{}, fmt.Errorf("%w: %q: %v", schema.ErrInvalidTool, name, err)
	}
	if !singleFunction(parsed) {
		return schema.Tool{}, fmt.Errorf("%w: %q: code must be a function body, not close it", schema.ErrInvalidTool, name)
	}
	prog, err := goja.CompileAST(parsed, false)
	if err != nil {
		return schema.Tool{}, fmt.Errorf("%w: %q: %v", schema.ErrInvalidTool, name, err)
	}

	sb := &sandbox{
		name:     name,
		program:  prog,
		params:   names,
		timeout:  c.timeout,
		maxStack: c.maxStack,
		maxHeap:  c.maxHeap,
		slots:    c.slots,
		logger:   c.logger,
	}
	return schema.NewTool(name, description, params, schema.KindDynamic, "", sb.invoke), nil
}

// singleFunction reports whether the wrapped source is still exactly one
// function expression, i.e. the body did not break out of the wrapper.
func singleFunction(p *ast.Program) bool {
	if len(p.Body) != 1 {
		return false
	}
	stmt, ok := p.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	fn, ok := stmt.Expression.(*ast.FunctionLiteral)
	return ok && fn.Async
}

// sandbox holds one compiled tool. The program is immutable and shared;
// every call gets its own runtime.
type sandbox struct {
	name     string
	program  *goja.Program
	params   []string
	timeout  time.Duration
	maxStack int
	maxHeap  uint64
	slots    *semaphore.Weighted
	logger   *slog.Logger
}

// invoke never returns an error: every failure becomes a
// {success:false, errorMessage} value.
func (s *sandbox) invoke(ctx context.Context, args map[string]any) (result any, _ error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return schema.DynamicFailure("execution cancelled while waiting for a free sandbox"), nil
	}
	defer s.slots.Release(1)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dynamic tool panicked", "tool", s.name, "panic", r)
			result = schema.DynamicFailure(fmt.Sprintf("internal error: %v", r))
		}
		s.logger.Debug("dynamic tool finished", "tool", s.name, "elapsed", time.Since(start))
	}()

	vm := goja.New()
	vm.SetMaxCallStackSize(s.maxStack)

	limit := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < limit {
			limit = remaining
		}
	}
	timer := time.AfterFunc(limit, func() {
		vm.Interrupt(fmt.Sprintf("execution timed out after %s", limit))
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt("execution cancelled")
	})
	defer stop()
	defer s.watchHeap(vm)()

	fnVal, err := vm.RunProgram(s.program)
	if err != nil {
		return schema.DynamicFailure(errorMessage(err)), nil
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return schema.DynamicFailure("compiled code is not a function"), nil
	}

	argv := make([]goja.Value, len(s.params))
	for i, name := range s.params {
		v, present := args[name]
		if !present {
			argv[i] = goja.Undefined()
			continue
		}
		argv[i] = vm.ToValue(v)
	}

	ret, err := fn(goja.Undefined(), argv...)
	if err != nil {
		return schema.DynamicFailure(errorMessage(err)), nil
	}
	return settle(ret)
}

// watchHeap interrupts vm once the heap has grown by more than maxHeap
// since the call started. The returned func stops the watchdog.
func (s *sandbox) watchHeap(vm *goja.Runtime) func() {
	baseline := heapBytes()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(memoryPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if now := heapBytes(); now > baseline && now-baseline > s.maxHeap {
					s.logger.Warn("dynamic tool exceeded memory limit", "tool", s.name, "growth", now-baseline)
					vm.Interrupt(fmt.Sprintf("memory limit exceeded (%d MiB)", s.maxHeap>>20))
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func heapBytes() uint64 {
	sample := []metrics.Sample{{Name: heapMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

// settle unwraps the promise returned by the async wrapper. Jobs queued by
// the body have run by the time the call returns, so a still-pending
// promise is waiting on something that will never happen.
func settle(v goja.Value) (any, error) {
	if p, ok := v.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			return export(p.Result()), nil
		case goja.PromiseStateRejected:
			return schema.DynamicFailure(valueMessage(p.Result())), nil
		default:
			return schema.DynamicFailure("tool returned a promise that never settled"), nil
		}
	}
	return export(v), nil
}

func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func errorMessage(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Sprint(interrupted.Value())
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return valueMessage(exc.Value())
	}
	return err.Error()
}

// valueMessage prefers the message property of thrown Error objects.
func valueMessage(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "unknown error"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}
