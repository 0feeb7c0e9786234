package kube

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// SlotLabel is the pod label that binds a workload to its slot. Each
// slot's Deployment sets it on its pod template and the application's
// Service selects on it.
const SlotLabel = "hueshift.io/slot"

// NewClientset builds a Kubernetes clientset from the given kubeconfig
// path, falling back to in-cluster config when the path is empty.
func NewClientset(kubeconfig string) (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig != "" {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		cfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return clientset, nil
}

// deploymentName returns the per-slot Deployment name, e.g.
// "storefront-blue".
func deploymentName(app string, slot string) string {
	return fmt.Sprintf("%s-%s", app, slot)
}
