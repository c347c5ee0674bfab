package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/job"
	"github.com/openjobspec/ojs-go/middleware"
)

func newTestExecution() *job.Execution {
	j := &job.Job{
		ID:      id.NewJobID(),
		Type:    "email.send",
		Queue:   "default",
		Attempt: 2,
	}
	return job.NewExecution(j, id.NewWorkerID())
}

func appendOrder(order *[]string, name string) middleware.Func {
	return func(ctx context.Context, _ *job.Execution, next middleware.Next) (any, error) {
		*order = append(*order, name+"-before")
		result, err := next(ctx)
		*order = append(*order, name+"-after")
		return result, err
	}
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	chain := middleware.NewChain()
	chain.Use("mw1", appendOrder(&order, "mw1"))
	chain.Use("mw2", appendOrder(&order, "mw2"))

	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		order = append(order, "handler")
		return "done", nil
	})

	result, err := handler(context.Background(), newTestExecution())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "done" {
		t.Errorf("result = %v, want %q", result, "done")
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("order = %v, want %v", order, expected)
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.NewChain()
	called := false
	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		called = true
		return 42, nil
	})

	result, err := handler(context.Background(), newTestExecution())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
	if result != 42 {
		t.Errorf("result = %v, want 42", result)
	}
}

func TestChain_PropagatesError(t *testing.T) {
	chain := middleware.NewChain()
	chain.Use("pass", func(ctx context.Context, _ *job.Execution, next middleware.Next) (any, error) {
		return next(ctx)
	})
	want := errors.New("handler error")

	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		return nil, want
	})

	_, err := handler(context.Background(), newTestExecution())
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestChain_ShortCircuit(t *testing.T) {
	chain := middleware.NewChain()
	rejected := errors.New("rejected")
	chain.Use("gate", func(_ context.Context, _ *job.Execution, _ middleware.Next) (any, error) {
		return nil, rejected
	})
	chain.Use("inner", func(_ context.Context, _ *job.Execution, _ middleware.Next) (any, error) {
		t.Fatal("inner middleware should not run after short-circuit")
		return nil, nil
	})

	handlerCalled := false
	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		handlerCalled = true
		return nil, nil
	})

	_, err := handler(context.Background(), newTestExecution())
	if !errors.Is(err, rejected) {
		t.Fatalf("expected %v, got %v", rejected, err)
	}
	if handlerCalled {
		t.Fatal("handler should not run after short-circuit")
	}
}

func TestChain_NextCalledTwice(t *testing.T) {
	var innerCalls, handlerCalls int

	chain := middleware.NewChain()
	chain.Use("greedy", func(ctx context.Context, _ *job.Execution, next middleware.Next) (any, error) {
		if _, err := next(ctx); err != nil {
			return nil, err
		}
		return next(ctx)
	})
	chain.Use("inner", func(ctx context.Context, _ *job.Execution, next middleware.Next) (any, error) {
		innerCalls++
		return next(ctx)
	})

	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		handlerCalls++
		return nil, nil
	})

	_, err := handler(context.Background(), newTestExecution())
	if !errors.Is(err, middleware.ErrNextCalledTwice) {
		t.Fatalf("expected ErrNextCalledTwice, got %v", err)
	}
	if !strings.Contains(err.Error(), `"greedy"`) {
		t.Errorf("error should name the offending entry: %v", err)
	}
	if innerCalls != 1 {
		t.Errorf("inner middleware ran %d times, want 1", innerCalls)
	}
	if handlerCalls != 1 {
		t.Errorf("handler ran %d times, want 1", handlerCalls)
	}
}

func TestChain_ConcurrentExecutions(t *testing.T) {
	chain := middleware.NewChain()
	chain.Use("pass", func(ctx context.Context, _ *job.Execution, next middleware.Next) (any, error) {
		return next(ctx)
	})
	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		return "ok", nil
	})

	// One composed handler must carry independent dispatch state per
	// invocation.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := handler(context.Background(), newTestExecution())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if result != "ok" {
				t.Errorf("result = %v, want %q", result, "ok")
			}
		}()
	}
	wg.Wait()
}

func TestChain_StructuralOps(t *testing.T) {
	noop := func(ctx context.Context, _ *job.Execution, next middleware.Next) (any, error) {
		return next(ctx)
	}

	chain := middleware.NewChain()
	chain.Use("a", noop)
	chain.Use("c", noop)
	if err := chain.InsertBefore("c", "b", noop); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}
	if err := chain.InsertAfter("c", "d", noop); err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}
	chain.Prepend("start", noop)

	want := []string{"start", "a", "b", "c", "d"}
	if got := chain.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	if !chain.Has("b") {
		t.Error("Has(b) = false, want true")
	}
	chain.Remove("b")
	if chain.Has("b") {
		t.Error("Has(b) = true after Remove")
	}
	chain.Remove("nonexistent") // no-op

	if err := chain.InsertBefore("missing", "x", noop); !errors.Is(err, middleware.ErrEntryNotFound) {
		t.Errorf("InsertBefore missing anchor: got %v, want ErrEntryNotFound", err)
	}
	if err := chain.InsertAfter("missing", "x", noop); !errors.Is(err, middleware.ErrEntryNotFound) {
		t.Errorf("InsertAfter missing anchor: got %v, want ErrEntryNotFound", err)
	}

	chain.Clear()
	if chain.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", chain.Len())
	}
}

func TestChain_DuplicateNamesFirstMatch(t *testing.T) {
	var order []string

	chain := middleware.NewChain()
	chain.Use("dup", appendOrder(&order, "first"))
	chain.Use("dup", appendOrder(&order, "second"))
	if got := chain.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}

	// Name-based operations address the first matching entry only.
	if err := chain.InsertAfter("dup", "probe", appendOrder(&order, "probe")); err != nil {
		t.Fatalf("InsertAfter: %v", err)
	}
	want := []string{"dup", "probe", "dup"}
	if got := chain.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}

	chain.Remove("dup")
	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})
	if _, err := handler(context.Background(), newTestExecution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"probe-before", "second-before", "handler", "second-after", "probe-after"}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Errorf("order = %v, want %v", order, wantOrder)
	}
}

func TestChain_ThenSnapshotsEntries(t *testing.T) {
	var order []string

	chain := middleware.NewChain()
	chain.Use("early", appendOrder(&order, "early"))

	handler := chain.Then(func(_ context.Context, _ *job.Execution) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})

	// Entries added after composition do not affect the composed handler.
	chain.Use("late", appendOrder(&order, "late"))

	if _, err := handler(context.Background(), newTestExecution()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"early-before", "handler", "early-after"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	logger := slog.Default()
	m := middleware.Recover(logger)
	ex := newTestExecution()

	_, err := m(context.Background(), ex, func(_ context.Context) (any, error) {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}

	var pe *middleware.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T: %v", err, err)
	}
	if pe.Value != "test panic" {
		t.Errorf("panic value = %v, want %q", pe.Value, "test panic")
	}
	if len(pe.Stack) == 0 {
		t.Error("expected captured stack trace")
	}
	if got := err.Error(); got != "panic: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	logger := slog.Default()
	m := middleware.Recover(logger)
	ex := newTestExecution()

	called := false
	result, err := m(context.Background(), ex, func(_ context.Context) (any, error) {
		called = true
		return "fine", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
	if result != "fine" {
		t.Errorf("result = %v, want %q", result, "fine")
	}
}

func TestLogging_Success(t *testing.T) {
	logger := slog.Default()
	m := middleware.Logging(logger)
	ex := newTestExecution()

	called := false
	result, err := m(context.Background(), ex, func(_ context.Context) (any, error) {
		called = true
		return "logged", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
	if result != "logged" {
		t.Errorf("result = %v, want %q", result, "logged")
	}
}

func TestLogging_Error(t *testing.T) {
	logger := slog.Default()
	m := middleware.Logging(logger)
	ex := newTestExecution()
	want := errors.New("fail")

	_, err := m(context.Background(), ex, func(_ context.Context) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
