package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Operations never mutate their inputs and always return a freshly allocated
// result. Shape violations panic with an error value; callers in the nn
// package convert those panics into returned errors.
//
// Implementations:
//   - CPU: Pure Go, matrix products through gonum
type Backend interface {
	// Element-wise binary operations (NumPy broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D tensors.
	// [B, M, K] @ [B, K, N] -> [B, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor) *RawTensor            // 2D only: [M, N] -> [N, M]
	Cat(tensors []*RawTensor, dim int) *RawTensor // concatenate along dimension

	// Scalar operations (element-wise with scalar)
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	Maximum(x *RawTensor, scalar float64) *RawTensor       // max(x, scalar)
	GreaterScalar(x *RawTensor, scalar float64) *RawTensor // 1 where x > scalar, else 0

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Abs(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor                           // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor // sum along dimension
	MaxDim(x *RawTensor, dim int, keepDim bool) *RawTensor // max along dimension
	Argmax(x *RawTensor, dim int) *RawTensor               // index of maximum value along dimension

	// Metadata
	Name() string
}
