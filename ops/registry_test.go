package ops

import "testing"

func TestRegisterLRNOperators(t *testing.T) {
	r := NewRegistry()
	if err := RegisterLRNOperators(r); err != nil {
		t.Fatalf("RegisterLRNOperators: %v", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "LRN" || names[1] != "LRNGradient" {
		t.Errorf("Names() = %v, want [LRN LRNGradient]", names)
	}

	lib := newFakeLibrary()
	for _, name := range names {
		op, err := r.Create(name, lib, lrnArgs())
		if err != nil {
			t.Errorf("Create(%s): %v", name, err)
			continue
		}
		op.Close()
	}

	// Double bootstrap is a bug, not a no-op.
	if err := RegisterLRNOperators(r); err == nil {
		t.Error("registering LRN twice should fail")
	}
}

func TestRegistryUnknownOperator(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create("Softmax", newFakeLibrary(), nil); err == nil {
		t.Error("unknown operator name should fail")
	}
}

func TestRegistryFactoryError(t *testing.T) {
	r := NewRegistry()
	if err := RegisterLRNOperators(r); err != nil {
		t.Fatal(err)
	}
	// size defaults to 0, which the constructor rejects.
	if _, err := r.Create("LRN", newFakeLibrary(), Arguments{}); err == nil {
		t.Error("constructor failure should surface through Create")
	}
}

func TestArgumentsDefaults(t *testing.T) {
	args := Arguments{"size": 5, "alpha": 0.0001}
	if got := args.Int("size", 0); got != 5 {
		t.Errorf("Int(size) = %d, want 5", got)
	}
	if got := args.Float("alpha", 0); got != 0.0001 {
		t.Errorf("Float(alpha) = %v, want 0.0001", got)
	}
	if got := args.Float("beta", 0); got != 0 {
		t.Errorf("Float(beta) default = %v, want 0", got)
	}
	if got := args.Float("bias", 1); got != 1 {
		t.Errorf("Float(bias) default = %v, want 1", got)
	}
}
