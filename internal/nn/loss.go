package nn

import (
	"fmt"

	"github.com/born-ml/nerfloss/internal/tensor"
)

// Loss is an elementary regression loss reduced to a 0-d tensor.
type Loss[T tensor.Float, B tensor.Backend] interface {
	Forward(predictions, targets *tensor.Tensor[T, B]) *tensor.Tensor[T, B]
}

// LossNames lists the names accepted by NewLoss.
var LossNames = []string{"L1", "MSE"}

// NewLoss returns the loss registered under name ("L1" or "MSE").
//
// Example:
//
//	rgbLoss, err := nn.NewLoss[float32, Backend]("MSE")
func NewLoss[T tensor.Float, B tensor.Backend](name string) (Loss[T, B], error) {
	switch name {
	case "L1":
		return NewL1Loss[T, B](), nil
	case "MSE":
		return NewMSELoss[T, B](), nil
	default:
		return nil, fmt.Errorf("unknown loss %q (known: %v)", name, LossNames)
	}
}

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
type MSELoss[T tensor.Float, B tensor.Backend] struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[T tensor.Float, B tensor.Backend]() *MSELoss[T, B] {
	return &MSELoss[T, B]{}
}

// Forward computes the MSE loss as a 0-d tensor.
func (m *MSELoss[T, B]) Forward(predictions, targets *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkSameShape("MSELoss", predictions, targets)
	return predictions.Sub(targets).Square().Mean()
}

// L1Loss computes Mean Absolute Error loss.
//
// Loss = mean(|predictions - targets|)
type L1Loss[T tensor.Float, B tensor.Backend] struct{}

// NewL1Loss creates a new L1 loss function.
func NewL1Loss[T tensor.Float, B tensor.Backend]() *L1Loss[T, B] {
	return &L1Loss[T, B]{}
}

// Forward computes the L1 loss as a 0-d tensor.
func (l *L1Loss[T, B]) Forward(predictions, targets *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	checkSameShape("L1Loss", predictions, targets)
	return predictions.Sub(targets).Abs().Mean()
}

func checkSameShape[T tensor.Float, B tensor.Backend](name string, a, b *tensor.Tensor[T, B]) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: predictions %v and targets %v must have the same shape", name, a.Shape(), b.Shape()))
	}
}
