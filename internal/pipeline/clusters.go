package pipeline

import (
	"path"
	"sort"
	"strings"

	"github.com/pathtrace/flowgraph/internal/graph"
)

// passClusters groups nodes by directory locality and measures cohesion:
// the share of a cluster's edges that stay inside it. A cluster with no
// edges at all is perfectly cohesive.
func (p *Pipeline) passClusters() {
	byKey := make(map[string][]*graph.Node)
	var keys []string
	for _, n := range p.Graph.Nodes() {
		key := clusterKey(n.File)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], n)
	}

	memberOf := make(map[string]string, p.Graph.NodeCount())
	for key, nodes := range byKey {
		for _, n := range nodes {
			memberOf[n.ID] = key
		}
	}

	for _, key := range keys {
		nodes := byKey[key]
		cluster := &graph.Cluster{
			Name: key,
			Kind: clusterKind(key),
		}
		for _, n := range nodes {
			cluster.NodeIDs = append(cluster.NodeIDs, n.ID)
		}

		internal, external := 0, 0
		extDeps := make(map[string]bool)
		for _, e := range p.Graph.Edges {
			fromIn := memberOf[e.From] == key
			toIn := memberOf[e.To] == key
			switch {
			case fromIn && toIn:
				internal++
			case fromIn || toIn:
				external++
				if fromIn {
					extDeps[e.To] = true
				}
			}
		}
		if internal+external == 0 {
			cluster.Cohesion = 1.0
		} else {
			cluster.Cohesion = float64(internal) / float64(internal+external)
		}
		for dep := range extDeps {
			cluster.ExternalDependencies = append(cluster.ExternalDependencies, dep)
		}
		sort.Strings(cluster.ExternalDependencies)

		p.Graph.Clusters = append(p.Graph.Clusters, cluster)
	}
}

// clusterKey is the last two path segments of the file's directory, or
// "root" for top-level files. Two segments keep src/api/users and
// lib/api/users distinct without splitting on every leaf.
func clusterKey(file string) string {
	dir := path.Dir(file)
	if dir == "." || dir == "/" {
		return "root"
	}
	segs := strings.Split(dir, "/")
	if len(segs) > 2 {
		segs = segs[len(segs)-2:]
	}
	return strings.Join(segs, "/")
}

var layerTokens = map[string]bool{
	"api": true, "apis": true, "routes": true, "handlers": true,
	"controllers": true, "middleware": true, "services": true,
	"models": true, "db": true, "lib": true, "utils": true,
}

func clusterKind(key string) graph.ClusterKind {
	for _, seg := range strings.Split(key, "/") {
		if layerTokens[seg] {
			return graph.ClusterLayer
		}
		if seg == "feature" || seg == "features" {
			return graph.ClusterFeature
		}
	}
	return graph.ClusterModule
}
