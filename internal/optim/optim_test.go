package optim

import (
	"errors"
	"math"
	"testing"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/model"
)

func singleParam(x float64) model.Params {
	return model.Params{"w": [][]*ad.Value{{ad.V(x)}}}
}

func singleGrad(g float64) Grads {
	return Grads{"w": [][]float64{{g}}}
}

func TestFactory(t *testing.T) {
	for _, kind := range []string{KindAdam, KindSGD} {
		cfg := DefaultConfig()
		cfg.Kind = kind
		opt, err := New(cfg)
		if err != nil {
			t.Fatalf("new %s: %v", kind, err)
		}
		if opt.Name() != kind {
			t.Fatalf("unexpected name: %s", opt.Name())
		}
	}
	cfg := DefaultConfig()
	cfg.Kind = "rmsprop"
	if _, err := New(cfg); !errors.Is(err, ErrUnknownOptimizer) {
		t.Fatalf("expected unknown optimizer error, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.LearningRate = 0
	if _, err := New(cfg); err == nil {
		t.Fatal("expected learning rate rejection")
	}
}

func TestSGDStepMath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kind = KindSGD
	cfg.LearningRate = 0.1
	cfg.Momentum = 0.5
	opt, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	params := singleParam(1.0)
	st := opt.Init(params)

	params, st, err = opt.ApplyGradients(st, singleGrad(2.0), params)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// v=2, w = 1 - 0.1*2 = 0.8
	if math.Abs(params["w"][0][0].Data-0.8) > 1e-12 {
		t.Fatalf("unexpected first sgd step: %f", params["w"][0][0].Data)
	}

	params, _, err = opt.ApplyGradients(st, singleGrad(2.0), params)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// v = 0.5*2 + 2 = 3, w = 0.8 - 0.3 = 0.5
	if math.Abs(params["w"][0][0].Data-0.5) > 1e-12 {
		t.Fatalf("unexpected second sgd step: %f", params["w"][0][0].Data)
	}
}

func TestAdamStepMath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LearningRate = 0.1
	opt, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	params := singleParam(1.0)
	st := opt.Init(params)
	params, st, err = opt.ApplyGradients(st, singleGrad(2.0), params)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	// bias-corrected first step moves by almost exactly -lr
	want := 1.0 - 0.1*2.0/(2.0+cfg.Eps)
	if math.Abs(params["w"][0][0].Data-want) > 1e-9 {
		t.Fatalf("unexpected adam step: got=%f want=%f", params["w"][0][0].Data, want)
	}
	if st.Step != 1 {
		t.Fatalf("unexpected step counter: %d", st.Step)
	}
}

func TestApplyGradientsDoesNotMutateOldParams(t *testing.T) {
	opt, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	params := singleParam(1.0)
	st := opt.Init(params)
	updated, _, err := opt.ApplyGradients(st, singleGrad(1.0), params)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if params["w"][0][0].Data != 1.0 {
		t.Fatal("old params were mutated in place")
	}
	if updated["w"][0][0] == params["w"][0][0] {
		t.Fatal("expected fresh parameter leaves")
	}
}

func TestGradientShapeMismatch(t *testing.T) {
	opt, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	params := singleParam(1.0)
	st := opt.Init(params)
	if _, _, err := opt.ApplyGradients(st, Grads{}, params); !errors.Is(err, ErrGradMismatch) {
		t.Fatalf("expected shape mismatch error, got %v", err)
	}
}

func TestGradientsDetach(t *testing.T) {
	x := ad.V(3)
	out := ad.Square(x)
	ad.Backward(out)

	params := model.Params{"w": [][]*ad.Value{{x}}}
	grads := Gradients(params)
	if grads["w"][0][0] != 6 {
		t.Fatalf("unexpected detached gradient: %f", grads["w"][0][0])
	}
}
