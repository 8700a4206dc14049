package agent

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Float64 is the only dtype written to WeightSpecs
const Float64 = "float64"

// Topology describes the architecture of a model so that an importer
// can check that it is loading weights into a compatible model
type Topology struct {
	Class      string `json:"class"`
	Inputs     int    `json:"inputs"`
	Outputs    int    `json:"outputs"`
	Hidden     []int  `json:"hidden"`
	Activation string `json:"activation"`
}

// Equal returns whether two topologies describe the same architecture
func (t Topology) Equal(o Topology) bool {
	if t.Class != o.Class || t.Inputs != o.Inputs ||
		t.Outputs != o.Outputs || t.Activation != o.Activation ||
		len(t.Hidden) != len(o.Hidden) {
		return false
	}
	for i := range t.Hidden {
		if t.Hidden[i] != o.Hidden[i] {
			return false
		}
	}
	return true
}

// WeightSpec describes one parameter in the flat weight buffer
type WeightSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
}

// Len returns the number of values the spec describes
func (w WeightSpec) Len() int {
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	return n
}

// ModelArtifact is a transportable snapshot of a model. WeightData
// holds the little-endian float64 values of every parameter, in the
// order of WeightSpecs, encoded as standard base64.
type ModelArtifact struct {
	ModelTopology Topology     `json:"modelTopology"`
	WeightSpecs   []WeightSpec `json:"weightSpecs"`
	WeightData    string       `json:"weightData"`
}

// ModelsData holds the actor and critic of an actor-critic agent
type ModelsData struct {
	Actor  *ModelArtifact `json:"actor"`
	Critic *ModelArtifact `json:"critic"`
}

// EncodeWeights flattens params into weight specs and base64 weight data
func EncodeWeights(params []*Parameter) ([]WeightSpec, string) {
	specs := make([]WeightSpec, len(params))
	var buf bytes.Buffer
	b := make([]byte, 8)
	for i, p := range params {
		shape := make([]int, len(p.Shape))
		copy(shape, p.Shape)
		specs[i] = WeightSpec{Name: p.Name, Shape: shape, DType: Float64}

		for _, v := range p.Data {
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
			buf.Write(b)
		}
	}
	return specs, base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeWeights reverses EncodeWeights, returning one Parameter per
// weight spec
func DecodeWeights(specs []WeightSpec, data string) ([]*Parameter, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decodeweights: could not decode weight "+
			"data: %v", err)
	}

	var total int
	for _, s := range specs {
		if s.DType != Float64 {
			return nil, fmt.Errorf("decodeweights: unsupported dtype %q "+
				"for weight %q", s.DType, s.Name)
		}
		for _, d := range s.Shape {
			if d <= 0 {
				return nil, fmt.Errorf("decodeweights: illegal shape %v "+
					"for weight %q", s.Shape, s.Name)
			}
		}
		total += s.Len()
	}
	if len(raw) != 8*total {
		return nil, fmt.Errorf("decodeweights: weight data has %d bytes, "+
			"specs describe %d", len(raw), 8*total)
	}

	params := make([]*Parameter, len(specs))
	offset := 0
	for i, s := range specs {
		p := NewParameter(s.Name, s.Shape...)
		for j := range p.Data {
			bits := binary.LittleEndian.Uint64(raw[offset : offset+8])
			p.Data[j] = math.Float64frombits(bits)
			offset += 8
		}
		params[i] = p
	}
	return params, nil
}

// Save writes the models to filename as JSON
func (m *ModelsData) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("save: could not encode models: %v", err)
	}
	return nil
}

// LoadModels reads models written by ModelsData.Save
func LoadModels(filename string) (*ModelsData, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("loadmodels: could not read file: %v", err)
	}

	var m ModelsData
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("loadmodels: could not decode models: %v", err)
	}
	if m.Actor == nil || m.Critic == nil {
		return nil, fmt.Errorf("loadmodels: missing actor or critic")
	}
	return &m, nil
}
