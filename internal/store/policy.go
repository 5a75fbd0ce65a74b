package store

import (
	json "github.com/goccy/go-json"
)

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string `json:"Sid"`
	Effect    string `json:"Effect"`
	Principal string `json:"Principal"`
	Action    string `json:"Action"`
	Resource  string `json:"Resource"`
}

// PublicReadPolicy renders a bucket policy allowing anonymous GetObject on
// every key under prefix.
func PublicReadPolicy(bucket, prefix string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Sid:       "PublicReadGetObject",
			Effect:    "Allow",
			Principal: "*",
			Action:    "s3:GetObject",
			Resource:  "arn:aws:s3:::" + bucket + "/" + prefix + "*",
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
