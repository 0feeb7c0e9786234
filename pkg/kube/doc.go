/*
Package kube adapts the deploy and route contracts to Kubernetes.

The convention is one Deployment per slot, named <app>-<slot>, whose
pod template carries the hueshift.io/slot label, plus one Service named
after the application whose selector includes that label. The Applier
re-tags the slot Deployment's images and waits on its rollout status;
the Backend patches the Service selector to move traffic between slots.

Cluster objects are expected to exist already. HueShift mutates them
but never creates or deletes them, so a misconfigured rollout cannot
orphan workloads.
*/
package kube
