package compiler

import (
	"fmt"

	"github.com/yarikc/composer/internal/ast"
)

// Compile lowers a single composition tree to a flat Program. pathPrefix
// seeds the Path recorded on every instruction, so two compositions
// compiled independently and later stitched together (e.g. an
// attachment's tree and the program that calls it) carry distinguishable
// diagnostic paths.
func Compile(node ast.Node, pathPrefix string) (Program, error) {
	return compile(node, pathPrefix)
}

func compile(node ast.Node, path string) (Program, error) {
	switch n := node.(type) {
	case *ast.Sequence:
		return compileSequence(n, path)
	case *ast.Action:
		return Program{{Type: ActionOp, Name: n.Name, Path: path}}, nil
	case *ast.Function:
		return Program{{Type: FuncOp, Exec: n.Exec, Path: path}}, nil
	case *ast.Literal:
		return Program{{Type: LitOp, Value: n.Value, Path: path}}, nil
	case *ast.Let:
		return compileLet(n, path)
	case *ast.Finally:
		return compileFinally(n, path)
	case *ast.Try:
		return compileTry(n, path)
	case *ast.Retain:
		return compileRetain(n, path)
	case *ast.If:
		return compileIf(n, path)
	case *ast.While:
		return compileWhile(n, path)
	case *ast.DoWhile:
		return compileDoWhile(n, path)
	default:
		return nil, fmt.Errorf("compiler: unrecognized node type %T", node)
	}
}

func compileSequence(n *ast.Sequence, path string) (Program, error) {
	if len(n.Children) == 0 {
		return Program{{Type: Pass, Path: path}}, nil
	}
	result, err := compile(n.Children[0], fmt.Sprintf("%s[0]", path))
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(n.Children); i++ {
		next, err := compile(n.Children[i], fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		result = Chain(result, next)
	}
	return result, nil
}

// compileLet lowers to [let] · body · [exit].
func compileLet(n *ast.Let, path string) (Program, error) {
	body, err := compile(n.Body, path+".body")
	if err != nil {
		return nil, err
	}
	result := Program{{Type: LetOp, Let: n.Declarations, Path: path}}
	result = append(result, body...)
	result[0].Next = intPtr(1)
	result = append(result, Instruction{Type: Exit, Path: path + ".exit"})
	result[len(result)-2].Next = intPtr(1)
	return result, nil
}

// compileFinally lowers to [try{catch=len(body)+1}] · body · [exit] ·
// finalizer. Both the success path (body falls through into exit) and
// the failure path (inspect() jumps the catch frame straight to exit)
// converge on the same exit instruction, which pops the try's frame
// either way before falling through into the finalizer.
func compileFinally(n *ast.Finally, path string) (Program, error) {
	var result Program
	tryIdx := len(result)
	result = append(result, Instruction{Type: TryOp, Path: path})
	result[tryIdx].Next = intPtr(1)

	bodyStart := len(result)
	body, err := compile(n.Body, path+".body")
	if err != nil {
		return nil, err
	}
	result = append(result, body...)

	exitIdx := len(result)
	result = append(result, Instruction{Type: Exit, Path: path + ".exit"})
	result[tryIdx].Catch = intPtr(exitIdx - tryIdx)
	joinLast(result, bodyStart, len(body), exitIdx)
	result[exitIdx].Next = intPtr(1)

	finalizer, err := compile(n.Finalizer, path+".finalizer")
	if err != nil {
		return nil, err
	}
	result = append(result, finalizer...)
	return result, nil
}

// compileTry lowers to [try{catch}] · body · [exit{next}] · [exit] ·
// handler · [pass]. The success path runs body then exit (popping the
// try's catch frame) and jumps straight to the trailing pass, skipping
// the handler entirely. The failure path is dispatched by inspect()
// directly to the second exit, which pops the very same frame before
// falling through into the handler — so both paths leave the stack
// exactly as they found it, and the handler always runs with a clean
// top frame regardless of which path reached it.
func compileTry(n *ast.Try, path string) (Program, error) {
	var result Program
	tryIdx := len(result)
	result = append(result, Instruction{Type: TryOp, Path: path})
	result[tryIdx].Next = intPtr(1)

	bodyStart := len(result)
	body, err := compile(n.Body, path+".body")
	if err != nil {
		return nil, err
	}
	result = append(result, body...)

	successExitIdx := len(result)
	result = append(result, Instruction{Type: Exit, Path: path + ".exit"})
	joinLast(result, bodyStart, len(body), successExitIdx)

	failureExitIdx := len(result)
	result = append(result, Instruction{Type: Exit, Path: path + ".catch"})
	result[tryIdx].Catch = intPtr(failureExitIdx - tryIdx)
	result[failureExitIdx].Next = intPtr(1)

	handlerIdx := len(result)
	handler, err := compile(n.Handler, path+".handler")
	if err != nil {
		return nil, err
	}
	result = append(result, handler...)

	passIdx := len(result)
	result = append(result, Instruction{Type: Pass, Path: path + ".join"})
	result[successExitIdx].Next = intPtr(passIdx - successExitIdx)
	joinLast(result, handlerIdx, len(handler), passIdx)
	return result, nil
}

// joinLast points the last instruction of a just-appended block at
// passIdx, overwriting whatever Next it had. An empty block has no last
// instruction and is left alone.
func joinLast(result Program, blockStart, blockLen, passIdx int) {
	if blockLen == 0 {
		return
	}
	last := blockStart + blockLen - 1
	result[last].Next = intPtr(passIdx - last)
}

// compileRetain lowers to [push{field}] · body · [pop{collect:true}], or,
// when Options.Catch is set, [push{field}] · [try{catch}] · body ·
// [exit] · [pop{collect:true}]. The catch frame's target is the exit
// instruction shared by both paths (the same trick compileFinally uses):
// on success body falls through into it; on failure inspect() jumps the
// catch frame straight there. Either way exit pops the frame and falls
// through into the collecting pop with params already holding either the
// body's result or the truncated {error: ...} — pop never calls
// inspect() itself, so a caught error can't re-trigger unwinding here.
func compileRetain(n *ast.Retain, path string) (Program, error) {
	var result Program
	pushIdx := len(result)
	result = append(result, Instruction{Type: Push, Field: n.Options.Field, Path: path + ".push"})

	if !n.Options.Catch {
		bodyIdx := len(result)
		body, err := compile(n.Body, path+".body")
		if err != nil {
			return nil, err
		}
		result = append(result, body...)
		result[pushIdx].Next = intPtr(bodyIdx - pushIdx)
		joinLast(result, bodyIdx, len(body), len(result))
		result = append(result, Instruction{Type: Pop, Collect: true, Path: path + ".pop"})
		return result, nil
	}

	tryIdx := len(result)
	result = append(result, Instruction{Type: TryOp, Path: path + ".try"})
	result[pushIdx].Next = intPtr(tryIdx - pushIdx)
	result[tryIdx].Next = intPtr(1)

	bodyIdx := len(result)
	body, err := compile(n.Body, path+".body")
	if err != nil {
		return nil, err
	}
	result = append(result, body...)

	exitIdx := len(result)
	result = append(result, Instruction{Type: Exit, Path: path + ".exit"})
	result[tryIdx].Catch = intPtr(exitIdx - tryIdx)
	result[exitIdx].Next = intPtr(1)
	joinLast(result, bodyIdx, len(body), exitIdx)

	result = append(result, Instruction{Type: Pop, Collect: true, Path: path + ".pop"})
	return result, nil
}

// compileIf lowers if/then/else. With Options.NoSave the push/pop pair
// around the test and branches is omitted, per spec.md's nosave option.
func compileIf(n *ast.If, path string) (Program, error) {
	var result Program
	testIdx := len(result)
	if !n.Options.NoSave {
		pushIdx := testIdx
		result = append(result, Instruction{Type: Push, Path: path + ".push"})
		testIdx = len(result)
		result[pushIdx].Next = intPtr(testIdx - pushIdx)
	}
	test, err := compile(n.Test, path+".test")
	if err != nil {
		return nil, err
	}
	result = append(result, test...)
	joinLast(result, testIdx, len(test), len(result))

	choiceIdx := len(result)
	result = append(result, Instruction{Type: Choice, Path: path})

	thenIdx := len(result)
	if !n.Options.NoSave {
		popIdx := thenIdx
		result = append(result, Instruction{Type: Pop, Path: path + ".consequent.pop"})
		thenIdx = len(result)
		result[popIdx].Next = intPtr(thenIdx - popIdx)
	}
	result[choiceIdx].Then = intPtr(thenIdx - choiceIdx)
	consequent, err := compile(n.Consequent, path+".consequent")
	if err != nil {
		return nil, err
	}
	consequentStart := len(result)
	result = append(result, consequent...)

	elseIdx := len(result)
	result[choiceIdx].Else = intPtr(elseIdx - choiceIdx)
	if !n.Options.NoSave {
		popIdx := elseIdx
		result = append(result, Instruction{Type: Pop, Path: path + ".alternate.pop"})
		elseIdx = len(result)
		result[popIdx].Next = intPtr(elseIdx - popIdx)
	}
	alternate, err := compile(n.Alternate, path+".alternate")
	if err != nil {
		return nil, err
	}
	alternateStart := len(result)
	result = append(result, alternate...)

	passIdx := len(result)
	result = append(result, Instruction{Type: Pass, Path: path + ".join"})

	joinLast(result, consequentStart, len(consequent), passIdx)
	joinLast(result, alternateStart, len(alternate), passIdx)
	return result, nil
}

// compileWhile lowers to a loop: test the condition, run body, jump
// back to the top. With save enabled the loop top and each branch are
// wrapped in push/pop so params survive the test into the body and the
// loop preserves them across iterations.
func compileWhile(n *ast.While, path string) (Program, error) {
	var result Program
	loopTop := len(result)
	testIdx := loopTop
	if !n.Options.NoSave {
		result = append(result, Instruction{Type: Push, Path: path + ".push"})
		testIdx = len(result)
		result[loopTop].Next = intPtr(testIdx - loopTop)
	}
	test, err := compile(n.Test, path+".test")
	if err != nil {
		return nil, err
	}
	result = append(result, test...)
	joinLast(result, testIdx, len(test), len(result))

	choiceIdx := len(result)
	result = append(result, Instruction{Type: Choice, Path: path})

	bodyEntry := len(result)
	if !n.Options.NoSave {
		result = append(result, Instruction{Type: Pop, Path: path + ".body.pop"})
		bodyStart := len(result)
		result[bodyEntry].Next = intPtr(bodyStart - bodyEntry)
	}
	result[choiceIdx].Then = intPtr(bodyEntry - choiceIdx)
	bodyStart := len(result)
	body, err := compile(n.Body, path+".body")
	if err != nil {
		return nil, err
	}
	result = append(result, body...)
	if len(body) > 0 {
		last := bodyStart + len(body) - 1
		result[last].Next = intPtr(loopTop - last)
	} else if !n.Options.NoSave {
		// empty body: the pop we inserted above must jump back itself.
		result[bodyEntry].Next = intPtr(loopTop - bodyEntry)
	} else {
		// empty body, no save: nothing was emitted between the choice
		// and here, so send the then-branch straight back to the top.
		result[choiceIdx].Then = intPtr(loopTop - choiceIdx)
	}

	elseIdx := len(result)
	result[choiceIdx].Else = intPtr(elseIdx - choiceIdx)
	if !n.Options.NoSave {
		result = append(result, Instruction{Type: Pop, Path: path + ".exit.pop"})
		passIdx := len(result)
		result[elseIdx].Next = intPtr(passIdx - elseIdx)
	}
	result = append(result, Instruction{Type: Pass, Path: path + ".join"})
	return result, nil
}

// compileDoWhile lowers body-first: run body once, then test, looping
// back to the body's start while the test holds.
func compileDoWhile(n *ast.DoWhile, path string) (Program, error) {
	var result Program
	bodyIdx := len(result)
	body, err := compile(n.Body, path+".body")
	if err != nil {
		return nil, err
	}
	result = append(result, body...)

	testIdx := len(result)
	joinLast(result, bodyIdx, len(body), testIdx)
	if !n.Options.NoSave {
		pushIdx := testIdx
		result = append(result, Instruction{Type: Push, Path: path + ".push"})
		testIdx = len(result)
		result[pushIdx].Next = intPtr(testIdx - pushIdx)
	}

	test, err := compile(n.Test, path+".test")
	if err != nil {
		return nil, err
	}
	result = append(result, test...)
	joinLast(result, testIdx, len(test), len(result))

	choiceIdx := len(result)
	result = append(result, Instruction{Type: Choice, Path: path})

	if n.Options.NoSave {
		result[choiceIdx].Then = intPtr(bodyIdx - choiceIdx)
		passIdx := choiceIdx + 1
		result[choiceIdx].Else = intPtr(passIdx - choiceIdx)
		result = append(result, Instruction{Type: Pass, Path: path + ".join"})
		return result, nil
	}

	thenPopIdx := len(result)
	result = append(result, Instruction{Type: Pop, Path: path + ".loop.pop"})
	result[choiceIdx].Then = intPtr(thenPopIdx - choiceIdx)
	result[thenPopIdx].Next = intPtr(bodyIdx - thenPopIdx)

	elsePopIdx := len(result)
	result = append(result, Instruction{Type: Pop, Path: path + ".exit.pop"})
	result[choiceIdx].Else = intPtr(elsePopIdx - choiceIdx)
	passIdx := len(result)
	result[elsePopIdx].Next = intPtr(passIdx - elsePopIdx)
	result = append(result, Instruction{Type: Pass, Path: path + ".join"})
	return result, nil
}
