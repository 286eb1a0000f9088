// Package config loads the dfio configuration file.
//
// # Usage
//
//	cfg, err := config.Load("dfio.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Every field has a default (see Default), so a file only needs the values
// it changes.
//
// # Environment Variable Substitution
//
//	# dfio.yaml
//	cloud:
//	  endpoint: ${DFIO_S3_ENDPOINT}
//	  bucket: ${DFIO_S3_BUCKET:-exports}
//	  access_key_id: ${AWS_ACCESS_KEY_ID}
//	  secret_access_key: ${AWS_SECRET_ACCESS_KEY}
//	capabilities:
//	  ndjson: false
//	log:
//	  level: debug
//	  encoding: console
//
// Capabilities left out of the file keep the defaults compiled into the
// binary; the dfio_minimal build tag turns them off.
package config
