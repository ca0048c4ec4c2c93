package main

import (
	"io"

	"github.com/Brownie44l1/medscan-api/internal/config"
	"github.com/Brownie44l1/medscan-api/internal/model"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

type Arguments struct {
	ImagePath  string
	ModelPath  string
	OrtLibPath string
	InputName  string
	OutputName string
	Verbose    bool
}

// ErrHelpShown means help or version output was printed and nothing else
// should run.
var ErrHelpShown = errors.New("help shown")

// ParseArguments parses argv. Usage and flag errors are printed to out.
func ParseArguments(argv []string, out io.Writer) (*Arguments, error) {
	var args *Arguments
	app := cli.NewApp()
	app.Name = "medscan-predict"
	app.Usage = "Classify a single medical image with a local model"
	app.Writer = out
	app.ErrWriter = out
	app.HideVersion = true

	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "image", Usage: "Path to the image file", Required: true},
		cli.StringFlag{Name: "model", Value: config.DefaultModelFile, Usage: "Path to the model file"},
		cli.StringFlag{Name: "ort-lib", Usage: "Path to the onnxruntime shared library", EnvVar: "ORT_LIB_PATH"},
		cli.StringFlag{Name: "input-name", Value: model.DefaultInputName, Usage: "Model input tensor name"},
		cli.StringFlag{Name: "output-name", Value: model.DefaultOutputName, Usage: "Model output tensor name"},
		cli.BoolFlag{Name: "verbose,v", Usage: "Enable debug logging"},
	}
	app.Action = func(c *cli.Context) error {
		args = &Arguments{
			ImagePath:  c.String("image"),
			ModelPath:  c.String("model"),
			OrtLibPath: c.String("ort-lib"),
			InputName:  c.String("input-name"),
			OutputName: c.String("output-name"),
			Verbose:    c.Bool("verbose"),
		}
		return nil
	}

	if err := app.Run(argv); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, ErrHelpShown
	}
	return args, nil
}
