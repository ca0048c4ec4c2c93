package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Brownie44l1/medscan-api/internal/apperror"
	"github.com/Brownie44l1/medscan-api/internal/model"
	"github.com/Brownie44l1/medscan-api/internal/predictor"
	"github.com/Brownie44l1/medscan-api/internal/preprocess"
	"github.com/Brownie44l1/medscan-api/internal/taxonomy"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	rcOK     = 0
	rcFailed = 1
)

type loaderFactory func(args *Arguments, numClasses int) model.Loader

func onnxLoader(args *Arguments, numClasses int) model.Loader {
	return model.ONNXLoader(model.ONNXOptions{
		LibraryPath: args.OrtLibPath,
		InputName:   args.InputName,
		OutputName:  args.OutputName,
		NumClasses:  numClasses,
	})
}

func main() {
	rc := run(os.Args, os.Stdout, onnxLoader)
	if err := model.DestroyEnvironment(); err != nil {
		logrus.WithError(err).Debug("Destroying ONNX environment failed")
	}
	os.Exit(rc)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func run(argv []string, out io.Writer, newLoader loaderFactory) int {
	args, err := ParseArguments(argv, out)
	if err == ErrHelpShown {
		return rcOK
	}
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return rcFailed
	}
	if args.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if !fileExists(args.ModelPath) {
		fmt.Fprintf(out, "❌ Model file not found: %s\n", args.ModelPath)
		return rcFailed
	}
	if !fileExists(args.ImagePath) {
		fmt.Fprintf(out, "❌ Image file not found: %s\n", args.ImagePath)
		return rcFailed
	}

	tax := taxonomy.Default()
	m, err := newLoader(args, tax.Len())(args.ModelPath)
	if err == nil && m == nil {
		err = errors.New("loader returned no model")
	}
	if err != nil {
		fmt.Fprintf(out, "❌ Error loading model: %v\n", err)
		return rcFailed
	}
	defer m.Close()
	fmt.Fprintf(out, "✅ Model loaded successfully from %s\n", args.ModelPath)

	tensor, err := preprocess.FromFile(args.ImagePath)
	if err != nil {
		fmt.Fprintf(out, "❌ Error preprocessing image: %v\n", err)
		return rcFailed
	}
	fmt.Fprintf(out, "✅ Image preprocessed successfully: %s\n", args.ImagePath)

	result, err := predictor.New(tax).Predict(m, tensor)
	if err != nil {
		if apperror.KindOf(err) == apperror.UnknownClassIndex {
			fmt.Fprintf(out, "❌ %v\n", err)
		} else {
			fmt.Fprintf(out, "❌ Error making prediction: %v\n", errors.Cause(err))
		}
		return rcFailed
	}

	printResult(out, result)
	fmt.Fprintln(out, "\n✅ Test completed successfully!")
	return rcOK
}

func printResult(out io.Writer, result *predictor.Prediction) {
	fmt.Fprintln(out, "\n===== PREDICTION RESULTS =====")
	fmt.Fprintf(out, "Category: %s\n", result.Category)
	fmt.Fprintf(out, "Prediction: %s\n", result.Label)
	fmt.Fprintf(out, "Prediction Index: %d\n", result.Index)

	fmt.Fprintln(out, "\nConfidence Scores:")
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Index", "Label", "Confidence"})
	table.SetBorder(false)
	for _, c := range result.Confidences {
		table.Append([]string{
			fmt.Sprintf("%d", c.Index),
			c.Label,
			fmt.Sprintf("%.2f%%", c.Probability*100),
		})
	}
	table.Render()
}
