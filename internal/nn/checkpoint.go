package nn

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ffnet-ml/ffnet/internal/serialization"
	"github.com/ffnet-ml/ffnet/internal/tensor"
)

const optimizerPrefix = "optimizer."

// Checkpoint represents a training state snapshot.
//
// A checkpoint includes:
//   - Network parameters (weights and biases)
//   - Optimizer state, when the network optimizer implements OptimizerState
//   - Training metadata (epoch, step, loss)
//
// Example:
//
//	ckpt := &nn.Checkpoint[*cpu.CPUBackend]{Network: net, Epoch: 10, Loss: 0.123}
//	err := ckpt.Save("model.ffnt")
//
// To resume training, build the same network and optimizer, then:
//
//	ckpt, err := nn.LoadCheckpoint("model.ffnt", net)
//	startEpoch := ckpt.Epoch + 1
type Checkpoint[B tensor.Backend] struct {
	Network   *Network[B]
	Epoch     int
	Step      int64
	Loss      float64
	Metadata  map[string]any
	RunID     string
	CreatedAt time.Time
}

// Save writes the checkpoint to path.
func (c *Checkpoint[B]) Save(path string) (err error) {
	stateDict := c.Network.StateDict()

	meta := &serialization.CheckpointMeta{
		Epoch:        c.Epoch,
		Step:         c.Step,
		Loss:         c.Loss,
		TrainingMeta: c.Metadata,
	}
	if opt := c.Network.Optimizer(); opt != nil {
		meta.OptimizerType = opt.Name()
		if state, ok := opt.(OptimizerState); ok {
			meta.OptimizerConfig = map[string]any{"lr": state.LR()}
			for name, raw := range state.StateDict(c.Network.ParamKeys()) {
				stateDict[optimizerPrefix+name] = raw
			}
		}
	}

	writer, err := serialization.NewWriter(path)
	if err != nil {
		return errors.Wrap(err, "failed to create checkpoint writer")
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	header := serialization.Header{
		RunID:          c.RunID,
		ModelName:      c.Network.Name(),
		CreatedAt:      time.Now().UTC(),
		Metadata:       map[string]string{"layers": strings.Join(layerNames(c.Network), ",")},
		CheckpointMeta: meta,
	}
	if err = writer.WriteStateDict(stateDict, header); err != nil {
		return errors.Wrap(err, "failed to write checkpoint")
	}
	c.RunID = writer.Header().RunID
	klog.V(1).Infof("saved checkpoint %s (run %s, epoch %d)", path, c.RunID, c.Epoch)
	return nil
}

// LoadCheckpoint restores a checkpoint into net.
//
// The network (and its optimizer, for optimizer state) must be built with the
// same architecture as the one saved. Values are copied into the existing
// parameters, so parameter identity is unchanged.
func LoadCheckpoint[B tensor.Backend](path string, net *Network[B]) (*Checkpoint[B], error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open checkpoint")
	}
	defer func() { _ = reader.Close() }()

	stateDict, err := reader.ReadStateDict()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read checkpoint tensors")
	}

	modelDict := make(map[string]*tensor.RawTensor)
	optimizerDict := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerDict[rest] = raw
		} else {
			modelDict[name] = raw
		}
	}

	if err := net.LoadStateDict(modelDict); err != nil {
		return nil, errors.Wrap(err, "failed to load model state")
	}
	if len(optimizerDict) > 0 {
		if state, ok := net.Optimizer().(OptimizerState); ok {
			if err := state.LoadStateDict(net.ParamRefs(), optimizerDict); err != nil {
				return nil, errors.Wrap(err, "failed to load optimizer state")
			}
		} else {
			klog.Warningf("%s: checkpoint holds optimizer state but the network optimizer cannot load it", path)
		}
	}

	header := reader.Header()
	ckpt := &Checkpoint[B]{
		Network:   net,
		RunID:     header.RunID,
		CreatedAt: header.CreatedAt,
	}
	if meta := header.CheckpointMeta; meta != nil {
		ckpt.Epoch = meta.Epoch
		ckpt.Step = meta.Step
		ckpt.Loss = meta.Loss
		ckpt.Metadata = meta.TrainingMeta
	}
	return ckpt, nil
}

// SaveCheckpoint is a convenience wrapper around Checkpoint.Save.
func SaveCheckpoint[B tensor.Backend](path string, net *Network[B], epoch int, loss float64) error {
	c := &Checkpoint[B]{Network: net, Epoch: epoch, Loss: loss}
	return c.Save(path)
}

func layerNames[B tensor.Backend](net *Network[B]) []string {
	names := make([]string, 0, net.Len())
	for _, l := range net.Layers() {
		names = append(names, l.Name())
	}
	return names
}
