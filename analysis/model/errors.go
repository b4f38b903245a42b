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

package model

import "errors"

var (
	// ErrNotFound is returned when an id does not reference any element of the program model, or when a
	// control-flow node has no enclosing function.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed inputs, e.g. an empty candidate path.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidModel is returned when a program model breaks a structural invariant, e.g. a control-flow node
	// contained in the bodies of two different functions.
	ErrInvalidModel = errors.New("invalid model")
)
