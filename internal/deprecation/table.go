// Package deprecation knows which apiVersion/kind pairs are deprecated or
// gone, and at which Kubernetes release.
package deprecation

// Deprecation is one retired API surface. Versions are Kubernetes minors
// ("1.16"); Replacement is the apiVersion that supersedes it.
type Deprecation struct {
	APIVersion   string
	Kind         string
	DeprecatedIn string
	RemovedIn    string
	Replacement  string
}

var table = []Deprecation{
	// extensions/v1beta1 workloads, removed 1.16
	{"extensions/v1beta1", "Deployment", "1.9", "1.16", "apps/v1"},
	{"extensions/v1beta1", "DaemonSet", "1.9", "1.16", "apps/v1"},
	{"extensions/v1beta1", "ReplicaSet", "1.9", "1.16", "apps/v1"},
	{"apps/v1beta1", "Deployment", "1.9", "1.16", "apps/v1"},
	{"apps/v1beta1", "StatefulSet", "1.9", "1.16", "apps/v1"},
	{"apps/v1beta2", "Deployment", "1.9", "1.16", "apps/v1"},
	{"apps/v1beta2", "DaemonSet", "1.9", "1.16", "apps/v1"},
	{"apps/v1beta2", "ReplicaSet", "1.9", "1.16", "apps/v1"},
	{"apps/v1beta2", "StatefulSet", "1.9", "1.16", "apps/v1"},

	// networking, removed 1.22
	{"extensions/v1beta1", "Ingress", "1.14", "1.22", "networking.k8s.io/v1"},
	{"networking.k8s.io/v1beta1", "Ingress", "1.19", "1.22", "networking.k8s.io/v1"},
	{"networking.k8s.io/v1beta1", "IngressClass", "1.19", "1.22", "networking.k8s.io/v1"},
	{"extensions/v1beta1", "NetworkPolicy", "1.9", "1.16", "networking.k8s.io/v1"},

	// batch
	{"batch/v1beta1", "CronJob", "1.21", "1.25", "batch/v1"},
	{"batch/v2alpha1", "CronJob", "1.8", "1.21", "batch/v1"},

	// policy
	{"policy/v1beta1", "PodDisruptionBudget", "1.21", "1.25", "policy/v1"},
	{"policy/v1beta1", "PodSecurityPolicy", "1.21", "1.25", ""},
	{"extensions/v1beta1", "PodSecurityPolicy", "1.10", "1.16", ""},

	// autoscaling
	{"autoscaling/v2beta1", "HorizontalPodAutoscaler", "1.19", "1.25", "autoscaling/v2"},
	{"autoscaling/v2beta2", "HorizontalPodAutoscaler", "1.23", "1.26", "autoscaling/v2"},

	// rbac
	{"rbac.authorization.k8s.io/v1beta1", "Role", "1.17", "1.22", "rbac.authorization.k8s.io/v1"},
	{"rbac.authorization.k8s.io/v1beta1", "ClusterRole", "1.17", "1.22", "rbac.authorization.k8s.io/v1"},
	{"rbac.authorization.k8s.io/v1beta1", "RoleBinding", "1.17", "1.22", "rbac.authorization.k8s.io/v1"},
	{"rbac.authorization.k8s.io/v1beta1", "ClusterRoleBinding", "1.17", "1.22", "rbac.authorization.k8s.io/v1"},

	// storage
	{"storage.k8s.io/v1beta1", "CSIDriver", "1.19", "1.22", "storage.k8s.io/v1"},
	{"storage.k8s.io/v1beta1", "CSINode", "1.17", "1.22", "storage.k8s.io/v1"},
	{"storage.k8s.io/v1beta1", "StorageClass", "1.19", "1.22", "storage.k8s.io/v1"},
	{"storage.k8s.io/v1beta1", "VolumeAttachment", "1.19", "1.22", "storage.k8s.io/v1"},

	// flowcontrol
	{"flowcontrol.apiserver.k8s.io/v1beta1", "FlowSchema", "1.23", "1.26", "flowcontrol.apiserver.k8s.io/v1beta3"},
	{"flowcontrol.apiserver.k8s.io/v1beta1", "PriorityLevelConfiguration", "1.23", "1.26", "flowcontrol.apiserver.k8s.io/v1beta3"},
	{"flowcontrol.apiserver.k8s.io/v1beta2", "FlowSchema", "1.26", "1.29", "flowcontrol.apiserver.k8s.io/v1"},
	{"flowcontrol.apiserver.k8s.io/v1beta2", "PriorityLevelConfiguration", "1.26", "1.29", "flowcontrol.apiserver.k8s.io/v1"},

	// admission, apiextensions, misc betas removed 1.22
	{"admissionregistration.k8s.io/v1beta1", "MutatingWebhookConfiguration", "1.16", "1.22", "admissionregistration.k8s.io/v1"},
	{"admissionregistration.k8s.io/v1beta1", "ValidatingWebhookConfiguration", "1.16", "1.22", "admissionregistration.k8s.io/v1"},
	{"apiextensions.k8s.io/v1beta1", "CustomResourceDefinition", "1.16", "1.22", "apiextensions.k8s.io/v1"},
	{"certificates.k8s.io/v1beta1", "CertificateSigningRequest", "1.19", "1.22", "certificates.k8s.io/v1"},
	{"coordination.k8s.io/v1beta1", "Lease", "1.19", "1.22", "coordination.k8s.io/v1"},
	{"scheduling.k8s.io/v1beta1", "PriorityClass", "1.14", "1.17", "scheduling.k8s.io/v1"},
}

var index = func() map[string]*Deprecation {
	m := make(map[string]*Deprecation, len(table))
	for i := range table {
		d := &table[i]
		m[d.APIVersion+"/"+d.Kind] = d
	}
	return m
}()

// Lookup returns the deprecation record for an apiVersion/kind pair.
func Lookup(apiVersion, kind string) (*Deprecation, bool) {
	d, ok := index[apiVersion+"/"+kind]
	return d, ok
}

// All returns the full table.
func All() []Deprecation {
	return table
}
