// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package config provides a simple way to manage configuration files, and the leveled loggers of the tools.

Use [Load](filename) to load a configuration from a specific filename.

Use [Parse] to read a configuration from the contents of a file, with defaults for the missing options.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. For example, a valid config file is as follows:

	model: build/model.ta
	candidate-paths: build/paths.yaml
	exclude-functions:
	  - ".*;ros::.*"
	options:
	  log-level: 4
	  max-branches: 5000
	  parallelism: 8
	  report-csv: true

Paths to the model and the candidate paths are relative to the config file.
*/
package config
