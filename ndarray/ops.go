package ndarray

import "math"

// Add returns a + b with broadcasting.
func (a *NDArray) Add(b *NDArray) (*NDArray, error) {
	return binaryOp(a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b with broadcasting.
func (a *NDArray) Sub(b *NDArray) (*NDArray, error) {
	return binaryOp(a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns the element-wise product a * b with broadcasting.
func (a *NDArray) Mul(b *NDArray) (*NDArray, error) {
	return binaryOp(a, b, func(x, y float32) float32 { return x * y })
}

// Div returns the element-wise quotient a / b with broadcasting.
// Division by zero follows IEEE 754 semantics (Inf/NaN), as NumPy does.
func (a *NDArray) Div(b *NDArray) (*NDArray, error) {
	return binaryOp(a, b, func(x, y float32) float32 { return x / y })
}

// AddScalar returns a + v.
func (a *NDArray) AddScalar(v float32) *NDArray {
	return a.apply(func(x float32) float32 { return x + v })
}

// SubScalar returns a - v.
func (a *NDArray) SubScalar(v float32) *NDArray {
	return a.apply(func(x float32) float32 { return x - v })
}

// MulScalar returns a * v.
func (a *NDArray) MulScalar(v float32) *NDArray {
	return a.apply(func(x float32) float32 { return x * v })
}

// DivScalar returns a / v.
func (a *NDArray) DivScalar(v float32) *NDArray {
	return a.apply(func(x float32) float32 { return x / v })
}

// Neg returns -a.
func (a *NDArray) Neg() *NDArray {
	return a.apply(func(x float32) float32 { return -x })
}

// Abs returns |a|.
func (a *NDArray) Abs() *NDArray {
	return a.apply(func(x float32) float32 {
		if x < 0 {
			return -x
		}
		return x
	})
}

// Square returns a².
func (a *NDArray) Square() *NDArray {
	return a.apply(func(x float32) float32 { return x * x })
}

// Sqrt returns the element-wise square root.
func (a *NDArray) Sqrt() *NDArray {
	return a.apply(func(x float32) float32 { return float32(math.Sqrt(float64(x))) })
}

// Exp returns the element-wise exponential.
func (a *NDArray) Exp() *NDArray {
	return a.apply(func(x float32) float32 { return float32(math.Exp(float64(x))) })
}

// Log returns the element-wise natural logarithm.
func (a *NDArray) Log() *NDArray {
	return a.apply(func(x float32) float32 { return float32(math.Log(float64(x))) })
}

// ReLU returns max(0, a) element-wise.
func (a *NDArray) ReLU() *NDArray {
	return a.apply(func(x float32) float32 {
		if x > 0 {
			return x
		}
		return 0
	})
}

// Sigmoid returns 1 / (1 + exp(-a)) element-wise.
func (a *NDArray) Sigmoid() *NDArray {
	return a.apply(func(x float32) float32 {
		return float32(1.0 / (1.0 + math.Exp(-float64(x))))
	})
}

// Clip limits every element to the range [min, max].
func (a *NDArray) Clip(min, max float32) *NDArray {
	return a.apply(func(x float32) float32 {
		switch {
		case x < min:
			return min
		case x > max:
			return max
		default:
			return x
		}
	})
}

// Sign returns -1, 0, or 1 element-wise.
func (a *NDArray) Sign() *NDArray {
	return a.apply(func(x float32) float32 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	})
}

// apply returns a new array with f mapped over every element.
func (a *NDArray) apply(f func(float32) float32) *NDArray {
	out := &NDArray{
		shape: a.shape.Clone(),
		data:  make([]float32, len(a.data)),
	}
	for i, x := range a.data {
		out.data[i] = f(x)
	}
	return out
}

func binaryOp(a, b *NDArray, op func(x, y float32) float32) (*NDArray, error) {
	outShape, needsBroadcast, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, err
	}

	out := &NDArray{
		shape: outShape,
		data:  make([]float32, outShape.NumElements()),
	}

	if !needsBroadcast {
		for i := range out.data {
			out.data[i] = op(a.data[i], b.data[i])
		}
		return out, nil
	}

	aStrides := broadcastStrides(a.shape, outShape)
	bStrides := broadcastStrides(b.shape, outShape)

	// Odometer walk over the output index space; broadcast dimensions carry
	// stride 0 so the smaller operand's offset simply does not advance.
	idx := make([]int, len(outShape))
	for flat := range out.data {
		aOff, bOff := 0, 0
		for d, i := range idx {
			aOff += i * aStrides[d]
			bOff += i * bStrides[d]
		}
		out.data[flat] = op(a.data[aOff], b.data[bOff])

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return out, nil
}

// broadcastStrides maps a source shape onto the output index space:
// dimensions of size 1 (or missing on the left) get stride 0.
func broadcastStrides(src, out Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for d := range out {
		srcIdx := d - offset
		if srcIdx < 0 || src[srcIdx] == 1 {
			strides[d] = 0
			continue
		}
		strides[d] = srcStrides[srcIdx]
	}
	return strides
}
