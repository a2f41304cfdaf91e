package ops

// Arguments holds the named numeric options an operator is constructed
// from. Missing names fall back to the caller-supplied default, so
// operator constructors read like their framework counterparts:
//
//	size := args.Int("size", 0)
//	bias := args.Float("bias", 1)
type Arguments map[string]float64

func (a Arguments) Float(name string, def float64) float64 {
	if v, ok := a[name]; ok {
		return v
	}
	return def
}

func (a Arguments) Int(name string, def int) int {
	if v, ok := a[name]; ok {
		return int(v)
	}
	return def
}
