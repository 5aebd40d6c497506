package main

import (
	"os"

	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/klog/v2"

	"github.com/namix-io/hierarchy-engine/pkg/utils/errors"
)

func main() {
	r := NewReconcileRunner(genericclioptions.IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr})
	err := r.Command.Execute()
	klog.Flush()
	errors.CheckError(err, r.log)
}
