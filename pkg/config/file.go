package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SetValue sets a top level scalar in the YAML config file, creating the file
// if needed. Comments and the order of the other keys are kept.
func SetValue(configFile string, key string, value string) error {
	root, err := readConfigNode(configFile)
	if err != nil {
		return err
	}

	mapNode := documentMapping(root)
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			mapNode.Content[i+1] = scalar(value)
			return writeConfigNode(configFile, root)
		}
	}
	mapNode.Content = append(mapNode.Content, scalar(key), scalar(value))
	return writeConfigNode(configFile, root)
}

// UnsetValue removes a top level key. It reports whether the key was present.
func UnsetValue(configFile string, key string) (bool, error) {
	root, err := readConfigNode(configFile)
	if err != nil {
		return false, err
	}

	mapNode := documentMapping(root)
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			mapNode.Content = append(mapNode.Content[:i], mapNode.Content[i+2:]...)
			return true, writeConfigNode(configFile, root)
		}
	}
	return false, nil
}

// DefaultConfigFile is where values are written when no config file was loaded.
func DefaultConfigFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not find the user config directory")
	}
	return filepath.Join(dir, AppName, "config.yaml"), nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}

func documentMapping(root *yaml.Node) *yaml.Node {
	if len(root.Content) > 0 && root.Content[0].Kind == yaml.MappingNode {
		return root.Content[0]
	}
	mapNode := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = []*yaml.Node{mapNode}
	return mapNode
}

func readConfigNode(configFile string) (*yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.DocumentNode}
	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return root, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	if err := yaml.Unmarshal(data, root); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	if root.Kind != yaml.DocumentNode {
		root = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	}
	return root, nil
}

func writeConfigNode(configFile string, root *yaml.Node) error {
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}
	f, err := os.OpenFile(configFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "error opening config file for writing")
	}
	defer f.Close()

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return errors.Wrap(err, "error writing config file")
	}
	return encoder.Close()
}
