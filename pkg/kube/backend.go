package kube

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/types"
)

// Backend moves traffic by patching the application Service's slot
// selector. kube-proxy reprograms endpoints from the selector, so the
// switch is atomic from the caller's point of view and needs no pod
// restarts.
type Backend struct {
	client    kubernetes.Interface
	namespace string
}

// NewBackend creates a traffic backend operating in the given
// namespace.
func NewBackend(client kubernetes.Interface, namespace string) *Backend {
	return &Backend{client: client, namespace: namespace}
}

// SetTarget points the app Service at the given slot. The endpoint
// argument is unused here; Kubernetes resolves endpoints from the
// selector.
func (b *Backend) SetTarget(ctx context.Context, app string, slot types.SlotID, endpoint string) error {
	patch := fmt.Sprintf(`{"spec":{"selector":{"%s":"%s"}}}`, SlotLabel, slot)

	_, err := b.client.CoreV1().Services(b.namespace).Patch(
		ctx, app, k8stypes.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patch service %s selector: %w", app, err)
	}

	log.WithApp(app).Info().
		Str("slot", string(slot)).
		Str("namespace", b.namespace).
		Msg("service selector switched")
	return nil
}
