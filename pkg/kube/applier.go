package kube

import (
	"context"
	"fmt"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/types"
)

// readyPollInterval is how often the readiness wait re-reads the
// Deployment status.
const readyPollInterval = 2 * time.Second

// Applier materializes slot workloads as Kubernetes Deployments. Each
// slot owns one Deployment named <app>-<slot>; a deploy re-tags its
// container images and scales it to requested replicas.
type Applier struct {
	client    kubernetes.Interface
	namespace string
}

// NewApplier creates an applier operating in the given namespace.
func NewApplier(client kubernetes.Interface, namespace string) *Applier {
	return &Applier{client: client, namespace: namespace}
}

// Apply re-tags the slot Deployment's container images to version and
// scales it to params.Replicas.
func (a *Applier) Apply(ctx context.Context, slot types.Slot, version string, params types.RolloutParams) error {
	name := deploymentName(slot.App, string(slot.ID))
	deployments := a.client.AppsV1().Deployments(a.namespace)

	dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get deployment %s: %w", name, err)
	}

	for i := range dep.Spec.Template.Spec.Containers {
		c := &dep.Spec.Template.Spec.Containers[i]
		c.Image = retagImage(c.Image, version)
	}
	replicas := int32(params.Replicas)
	dep.Spec.Replicas = &replicas

	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update deployment %s: %w", name, err)
	}

	log.WithApp(slot.App).Info().
		Str("slot", string(slot.ID)).
		Str("deployment", name).
		Str("version", version).
		Int32("replicas", replicas).
		Msg("deployment updated")
	return nil
}

// WaitReady blocks until the slot Deployment reports all requested
// replicas updated and ready, or ctx expires.
func (a *Applier) WaitReady(ctx context.Context, slot types.Slot, params types.RolloutParams) error {
	name := deploymentName(slot.App, string(slot.ID))
	deployments := a.client.AppsV1().Deployments(a.namespace)

	return wait.PollUntilContextCancel(ctx, readyPollInterval, true, func(ctx context.Context) (bool, error) {
		dep, err := deployments.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			// Transient read failures are retried until the
			// deadline
			log.Warn(fmt.Sprintf("Failed to read deployment %s: %v", name, err))
			return false, nil
		}
		return deploymentReady(dep), nil
	})
}

// deploymentReady reports whether the controller has observed the
// latest spec and every requested replica is updated and ready.
func deploymentReady(dep *appsv1.Deployment) bool {
	if dep.Status.ObservedGeneration < dep.Generation {
		return false
	}
	want := int32(1)
	if dep.Spec.Replicas != nil {
		want = *dep.Spec.Replicas
	}
	return dep.Status.UpdatedReplicas >= want && dep.Status.ReadyReplicas >= want
}

// retagImage swaps the tag on an image reference, preserving the
// registry and repository. References without a tag get one appended;
// a digest pin is replaced by the tag, since the rollout names
// versions by tag.
func retagImage(image, version string) string {
	if at := strings.Index(image, "@"); at >= 0 {
		image = image[:at]
	}
	slash := strings.LastIndex(image, "/")
	if colon := strings.LastIndex(image, ":"); colon > slash {
		image = image[:colon]
	}
	return image + ":" + version
}
