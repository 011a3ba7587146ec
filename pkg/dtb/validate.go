package dtb

import (
	"fmt"
	"os"
	"strings"

	"github.com/u-root/u-root/pkg/dt"
)

// Summary is what Inspect reports about a blob's root node.
type Summary struct {
	Model      string
	Compatible []string
	Children   []string
}

// Inspect parses the blob at path and summarizes its root node. A file
// that does not parse as a flattened devicetree is an error.
func Inspect(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	fdt, err := dt.ReadFDT(f)
	if err != nil {
		return Summary{}, fmt.Errorf("%s is not a valid devicetree blob: %w", path, err)
	}
	if fdt.RootNode == nil {
		return Summary{}, fmt.Errorf("%s has no root node", path)
	}

	var s Summary
	for _, p := range fdt.RootNode.Properties {
		switch p.Name {
		case "model":
			s.Model = strings.TrimRight(string(p.Value), "\x00")
		case "compatible":
			s.Compatible = splitStringList(p.Value)
		}
	}
	for _, n := range fdt.RootNode.Children {
		s.Children = append(s.Children, n.Name)
	}
	return s, nil
}

// splitStringList decodes a devicetree stringlist property.
func splitStringList(v []byte) []string {
	var out []string
	for _, s := range strings.Split(string(v), "\x00") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
