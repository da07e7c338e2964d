// Package kube implements the cluster port on top of the Kubernetes batch API.
package kube

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"telegram-research-relay/internal/domain"
	"telegram-research-relay/internal/domain/model"
	"telegram-research-relay/internal/domain/ports/adapter"
)

// Namespace is where every research job and its pods live.
const Namespace = "opendeepresearch"

// Kubernetes applies this when a Job leaves backoffLimit unset.
const defaultBackoffLimit = int32(6)

// NewClientset tries in-cluster configuration first and falls back to kubeconfig
// (or ~/.kube/config when empty) for local development.
func NewClientset(kubeconfig string, logger *zerolog.Logger) (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfig == "" {
			kubeconfig = filepath.Join(homeDir(), ".kube", "config")
		}
		logger.Info().Err(err).Str("kubeconfig", kubeconfig).Msg("in-cluster config not available, using kubeconfig")
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("build kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes clientset: %w", err)
	}
	return clientset, nil
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return os.Getenv("USERPROFILE") // Windows
}

// Compile-time check
var _ adapter.ClusterAdapter = (*Cluster)(nil)

type Cluster struct {
	clientset kubernetes.Interface
	namespace string
	log       *zerolog.Logger
}

func NewCluster(clientset kubernetes.Interface, namespace string, logger *zerolog.Logger) *Cluster {
	compLog := logger.With().Str("component", "KubeCluster").Str("namespace", namespace).Logger()
	return &Cluster{clientset: clientset, namespace: namespace, log: &compLog}
}

func (c *Cluster) CreateJob(ctx context.Context, spec model.JobSpec) (string, error) {
	job, err := toBatchJob(spec, c.namespace)
	if err != nil {
		return "", err
	}

	created, err := c.clientset.BatchV1().Jobs(c.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return "", fmt.Errorf("job %s: %w", spec.Name, domain.ErrAlreadyExists)
		}
		return "", fmt.Errorf("failed to create kubernetes job: %w", err)
	}

	c.log.Debug().Str("job_id", created.Name).Msg("created kubernetes job")
	return created.Name, nil
}

func (c *Cluster) GetJobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	job, err := c.clientset.BatchV1().Jobs(c.namespace).Get(ctx, jobID, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotFound)
		}
		return "", fmt.Errorf("get job %s: %w", jobID, err)
	}
	return jobStatus(job), nil
}

// ListPods returns matching pod names, succeeded pods first so a retried job yields
// the log of the attempt that actually produced an answer.
func (c *Cluster) ListPods(ctx context.Context, labelSelector string) ([]string, error) {
	pods, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods %q: %w", labelSelector, err)
	}

	items := pods.Items
	sort.SliceStable(items, func(i, k int) bool {
		return items[i].Status.Phase == corev1.PodSucceeded && items[k].Status.Phase != corev1.PodSucceeded
	})
	names := make([]string, 0, len(items))
	for _, p := range items {
		names = append(names, p.Name)
	}
	return names, nil
}

// GetPodLog returns the full log of the pod's only container.
func (c *Cluster) GetPodLog(ctx context.Context, podName string) (string, error) {
	stream, err := c.clientset.CoreV1().Pods(c.namespace).GetLogs(podName, &corev1.PodLogOptions{}).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("get logs of pod %s: %w", podName, err)
	}
	defer stream.Close()

	raw, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("read logs of pod %s: %w", podName, err)
	}
	return string(raw), nil
}

// jobStatus prefers the controller's terminal conditions and falls back to pod
// counters. A failed pod with retries left is still pending.
func jobStatus(job *batchv1.Job) model.JobStatus {
	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			return model.JobStatusSucceeded
		case batchv1.JobFailed:
			return model.JobStatusFailed
		}
	}

	if job.Status.Succeeded > 0 {
		return model.JobStatusSucceeded
	}
	limit := defaultBackoffLimit
	if job.Spec.BackoffLimit != nil {
		limit = *job.Spec.BackoffLimit
	}
	if job.Status.Failed > limit {
		return model.JobStatusFailed
	}
	return model.JobStatusPending
}

func toBatchJob(spec model.JobSpec, namespace string) (*batchv1.Job, error) {
	if spec.Name == "" || spec.Image == "" {
		return nil, fmt.Errorf("%w: name and image are required", domain.ErrInvalidArgument)
	}

	requests, err := resourceList(spec.Resources.CPURequest, spec.Resources.MemoryRequest)
	if err != nil {
		return nil, err
	}
	limits, err := resourceList(spec.Resources.CPULimit, spec.Resources.MemoryLimit)
	if err != nil {
		return nil, err
	}

	backoff := spec.BackoffLimit
	ttl := int32(spec.TTLAfterFinish.Seconds())

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: namespace,
			Labels:    copyLabels(spec.Labels),
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoff,
			TTLSecondsAfterFinished: &ttl,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: copyLabels(spec.Labels),
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:  spec.Container,
							Image: spec.Image,
							Args:  append([]string(nil), spec.Args...),
							Env:   envVars(spec),
							Resources: corev1.ResourceRequirements{
								Requests: requests,
								Limits:   limits,
							},
						},
					},
				},
			},
		},
	}, nil
}

func resourceList(cpu, memory string) (corev1.ResourceList, error) {
	out := corev1.ResourceList{}
	if cpu != "" {
		q, err := resource.ParseQuantity(cpu)
		if err != nil {
			return nil, fmt.Errorf("%w: cpu %q: %v", domain.ErrInvalidArgument, cpu, err)
		}
		out[corev1.ResourceCPU] = q
	}
	if memory != "" {
		q, err := resource.ParseQuantity(memory)
		if err != nil {
			return nil, fmt.Errorf("%w: memory %q: %v", domain.ErrInvalidArgument, memory, err)
		}
		out[corev1.ResourceMemory] = q
	}
	return out, nil
}

// envVars renders plain values sorted by name, followed by secret references.
func envVars(spec model.JobSpec) []corev1.EnvVar {
	names := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		names = append(names, k)
	}
	sort.Strings(names)

	vars := make([]corev1.EnvVar, 0, len(spec.Env)+len(spec.SecretEnv))
	for _, k := range names {
		vars = append(vars, corev1.EnvVar{Name: k, Value: spec.Env[k]})
	}
	for _, se := range spec.SecretEnv {
		vars = append(vars, corev1.EnvVar{
			Name: se.Name,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: se.Secret},
					Key:                  se.Key,
				},
			},
		})
	}
	return vars
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
